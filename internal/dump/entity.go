package dump

import (
	"fmt"
	"strconv"
	"strings"
)

// Entity is one decoded top-level record of a dump.
type Entity interface {
	Kind() Kind
	EntityID() int64
}

// ID is a positive integer identifier read from element text or an
// attribute. Surrounding whitespace is ignored.
type ID int64

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w %q", ErrInvalidID, s)
	}
	*id = ID(v)
	return nil
}

// Ref is a name with an optional id attribute: <name id="42">Foo</name>.
type Ref struct {
	ID   string `xml:"id,attr"`
	Name string `xml:",chardata"`
}

// Credit is an artist credit on a master, release or track.
type Credit struct {
	ID     string `xml:"id"`
	Name   string `xml:"name"`
	ANV    string `xml:"anv"`
	Join   string `xml:"join"`
	Role   string `xml:"role"`
	Tracks string `xml:"tracks"`
}

// Video is a video link on a master or release.
type Video struct {
	Src         string `xml:"src,attr"`
	Duration    string `xml:"duration,attr"`
	Embed       string `xml:"embed,attr"`
	Title       string `xml:"title"`
	Description string `xml:"description"`
}

// ArtistRecord is an <artist> element of the artists dump.
type ArtistRecord struct {
	ID             ID       `xml:"id"`
	Name           string   `xml:"name"`
	RealName       string   `xml:"realname"`
	Profile        string   `xml:"profile"`
	DataQuality    string   `xml:"data_quality"`
	URLs           []string `xml:"urls>url"`
	NameVariations []string `xml:"namevariations>name"`
	Aliases        []Ref    `xml:"aliases>name"`
	Members        []Ref    `xml:"members>name"`
}

func (*ArtistRecord) Kind() Kind        { return Artist }
func (a *ArtistRecord) EntityID() int64 { return int64(a.ID) }

// LabelRecord is a <label> element of the labels dump.
type LabelRecord struct {
	ID          ID       `xml:"id"`
	Name        string   `xml:"name"`
	ContactInfo string   `xml:"contactinfo"`
	Profile     string   `xml:"profile"`
	DataQuality string   `xml:"data_quality"`
	URLs        []string `xml:"urls>url"`
	Sublabels   []Ref    `xml:"sublabels>label"`
	Parent      *Ref     `xml:"parentLabel"`
}

func (*LabelRecord) Kind() Kind        { return Label }
func (l *LabelRecord) EntityID() int64 { return int64(l.ID) }

// MasterRecord is a <master> element of the masters dump.
type MasterRecord struct {
	ID          ID       `xml:"id,attr"`
	MainRelease string   `xml:"main_release"`
	Artists     []Credit `xml:"artists>artist"`
	Genres      []string `xml:"genres>genre"`
	Styles      []string `xml:"styles>style"`
	Year        string   `xml:"year"`
	Title       string   `xml:"title"`
	DataQuality string   `xml:"data_quality"`
	Videos      []Video  `xml:"videos>video"`
}

func (*MasterRecord) Kind() Kind        { return Master }
func (m *MasterRecord) EntityID() int64 { return int64(m.ID) }

// LabelCredit is a <label name=".." catno=".." id=".."/> on a release.
type LabelCredit struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Catno string `xml:"catno,attr"`
}

// Format is a release format with its free-form descriptions.
type Format struct {
	Name         string   `xml:"name,attr"`
	Qty          string   `xml:"qty,attr"`
	Text         string   `xml:"text,attr"`
	Descriptions []string `xml:"descriptions>description"`
}

// Identifier is a barcode, matrix or other identifier of a release.
type Identifier struct {
	Type        string `xml:"type,attr"`
	Description string `xml:"description,attr"`
	Value       string `xml:"value,attr"`
}

// Track is a tracklist entry; index tracks and medleys nest sub tracks.
type Track struct {
	Position     string   `xml:"position"`
	Title        string   `xml:"title"`
	Duration     string   `xml:"duration"`
	Artists      []Credit `xml:"artists>artist"`
	ExtraArtists []Credit `xml:"extraartists>artist"`
	SubTracks    []Track  `xml:"sub_tracks>track"`
}

// Company is a company credit (pressed by, distributed by, ...).
type Company struct {
	ID             string `xml:"id"`
	Name           string `xml:"name"`
	Catno          string `xml:"catno"`
	EntityType     string `xml:"entity_type"`
	EntityTypeName string `xml:"entity_type_name"`
}

// MasterRef is the <master_id is_main_release="true">5427</master_id> element.
type MasterRef struct {
	IsMainRelease string `xml:"is_main_release,attr"`
	ID            string `xml:",chardata"`
}

// ReleaseRecord is a <release> element of the releases dump.
type ReleaseRecord struct {
	ID           ID            `xml:"id,attr"`
	Status       string        `xml:"status,attr"`
	Artists      []Credit      `xml:"artists>artist"`
	Title        string        `xml:"title"`
	Labels       []LabelCredit `xml:"labels>label"`
	ExtraArtists []Credit      `xml:"extraartists>artist"`
	Formats      []Format      `xml:"formats>format"`
	Genres       []string      `xml:"genres>genre"`
	Styles       []string      `xml:"styles>style"`
	Country      string        `xml:"country"`
	Released     string        `xml:"released"`
	Notes        string        `xml:"notes"`
	DataQuality  string        `xml:"data_quality"`
	Master       MasterRef     `xml:"master_id"`
	Tracklist    []Track       `xml:"tracklist>track"`
	Identifiers  []Identifier  `xml:"identifiers>identifier"`
	Videos       []Video       `xml:"videos>video"`
	Companies    []Company     `xml:"companies>company"`
}

func (*ReleaseRecord) Kind() Kind        { return Release }
func (r *ReleaseRecord) EntityID() int64 { return int64(r.ID) }
