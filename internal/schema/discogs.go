package schema

// Table names of the Discogs export. Each name is also the CSV file stem.
const (
	TableArtist              = "artist"
	TableArtistAlias         = "artist_alias"
	TableArtistNameVariation = "artist_namevariation"
	TableArtistURL           = "artist_url"
	TableGroupMember         = "group_member"

	TableLabel         = "label"
	TableLabelURL      = "label_url"
	TableLabelSublabel = "label_sublabel"

	TableMaster       = "master"
	TableMasterArtist = "master_artist"
	TableMasterGenre  = "master_genre"
	TableMasterStyle  = "master_style"
	TableMasterVideo  = "master_video"

	TableRelease            = "release"
	TableReleaseArtist      = "release_artist"
	TableReleaseLabel       = "release_label"
	TableReleaseGenre       = "release_genre"
	TableReleaseStyle       = "release_style"
	TableReleaseFormat      = "release_format"
	TableReleaseIdentifier  = "release_identifier"
	TableReleaseTrack       = "release_track"
	TableReleaseTrackArtist = "release_track_artist"
	TableReleaseVideo       = "release_video"
	TableReleaseCompany     = "release_company"
)

func text(name string) FieldSpec { return FieldSpec{Name: name, Type: FieldText} }
func num(name string) FieldSpec  { return FieldSpec{Name: name, Type: FieldInt} }
func flag(name string) FieldSpec { return FieldSpec{Name: name, Type: FieldBool} }

// ArtistFieldSpecs defines the artist table.
var ArtistFieldSpecs = []FieldSpec{
	num("id"), text("name"), text("realname"), text("profile"), text("data_quality"),
}

// LabelFieldSpecs defines the label table.
var LabelFieldSpecs = []FieldSpec{
	num("id"), text("name"), text("contact_info"), text("profile"),
	num("parent_id"), text("parent_name"), text("data_quality"),
}

// MasterFieldSpecs defines the master table.
var MasterFieldSpecs = []FieldSpec{
	num("id"), text("title"), num("year"), num("main_release"), text("data_quality"),
}

// ReleaseFieldSpecs defines the release table.
var ReleaseFieldSpecs = []FieldSpec{
	num("id"), text("title"), text("released"), text("country"), text("notes"),
	text("data_quality"), num("master_id"), flag("is_main_release"), text("status"),
}

// creditFields are shared by the artist credit tables.
var creditFields = []FieldSpec{
	num("artist_id"), text("artist_name"), flag("extra"), text("anv"),
	num("position"), text("join_string"), text("role"),
}

func videoFields(fk string) []FieldSpec {
	return []FieldSpec{
		num(fk), num("position"), num("duration"), text("title"),
		text("description"), text("uri"), flag("embed"),
	}
}

func child(name, group, fk string, fields ...FieldSpec) TableDef {
	return TableDef{Name: name, Group: group, ForeignKey: fk, Fields: fields}
}

func concat(parts ...[]FieldSpec) []FieldSpec {
	var out []FieldSpec
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// DiscogsTables returns the table set of the Discogs dumps, grouped by
// entity kind with each primary table first.
func DiscogsTables() []TableDef {
	return []TableDef{
		{Name: TableArtist, Group: "artist", Primary: true, Fields: ArtistFieldSpecs},
		child(TableArtistAlias, "artist", "artist_id", num("artist_id"), num("alias_id"), text("alias_name")),
		child(TableArtistNameVariation, "artist", "artist_id", num("artist_id"), text("name")),
		child(TableArtistURL, "artist", "artist_id", num("artist_id"), text("url")),
		child(TableGroupMember, "artist", "group_artist_id",
			num("group_artist_id"), num("member_artist_id"), text("member_name")),

		{Name: TableLabel, Group: "label", Primary: true, Fields: LabelFieldSpecs},
		child(TableLabelURL, "label", "label_id", num("label_id"), text("url")),
		child(TableLabelSublabel, "label", "label_id", num("label_id"), num("sublabel_id"), text("sublabel_name")),

		{Name: TableMaster, Group: "master", Primary: true, Fields: MasterFieldSpecs},
		child(TableMasterArtist, "master", "master_id",
			num("master_id"), num("artist_id"), text("artist_name"), text("anv"),
			num("position"), text("join_string"), text("role")),
		child(TableMasterGenre, "master", "master_id", num("master_id"), text("genre")),
		child(TableMasterStyle, "master", "master_id", num("master_id"), text("style")),
		child(TableMasterVideo, "master", "master_id", videoFields("master_id")...),

		{Name: TableRelease, Group: "release", Primary: true, Fields: ReleaseFieldSpecs},
		child(TableReleaseArtist, "release", "release_id",
			concat([]FieldSpec{num("release_id")}, creditFields, []FieldSpec{text("tracks")})...),
		child(TableReleaseLabel, "release", "release_id",
			num("release_id"), num("label_id"), text("label_name"), text("catno")),
		child(TableReleaseGenre, "release", "release_id", num("release_id"), text("genre")),
		child(TableReleaseStyle, "release", "release_id", num("release_id"), text("style")),
		child(TableReleaseFormat, "release", "release_id",
			num("release_id"), num("position"), text("name"), text("qty"),
			text("text_string"), text("descriptions")),
		child(TableReleaseIdentifier, "release", "release_id",
			num("release_id"), text("description"), text("type"), text("value")),
		child(TableReleaseTrack, "release", "release_id",
			num("release_id"), num("sequence"), text("position"), num("parent"),
			text("title"), text("duration")),
		child(TableReleaseTrackArtist, "release", "release_id",
			concat([]FieldSpec{num("release_id"), num("track_sequence")}, creditFields)...),
		child(TableReleaseVideo, "release", "release_id", videoFields("release_id")...),
		child(TableReleaseCompany, "release", "release_id",
			num("release_id"), num("company_id"), text("company_name"), text("catno"),
			num("entity_type"), text("entity_type_name")),
	}
}

// Default returns a registry holding the Discogs table set.
func Default() *Registry {
	return MustNew(DiscogsTables()...)
}
