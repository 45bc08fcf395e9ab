package decompose

import (
	"strings"

	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

var releaseTables = []string{
	schema.TableRelease,
	schema.TableReleaseArtist,
	schema.TableReleaseLabel,
	schema.TableReleaseGenre,
	schema.TableReleaseStyle,
	schema.TableReleaseFormat,
	schema.TableReleaseIdentifier,
	schema.TableReleaseTrack,
	schema.TableReleaseTrackArtist,
	schema.TableReleaseVideo,
	schema.TableReleaseCompany,
}

// FormatDescriptionSeparator joins the descriptions of a format into one column.
const FormatDescriptionSeparator = "; "

func decomposeRelease(r *dump.ReleaseRecord, b *builder) {
	b.primary(b.id, r.Title, ident(r.Released), r.Country, r.Notes, r.DataQuality,
		ident(r.Master.ID), flagText(r.Master.IsMainRelease), r.Status)

	for i, a := range r.Artists {
		b.child(schema.TableReleaseArtist, append(creditValues(i, a, false), a.Tracks)...)
	}
	for i, a := range r.ExtraArtists {
		b.child(schema.TableReleaseArtist, append(creditValues(i, a, true), a.Tracks)...)
	}
	for _, l := range r.Labels {
		b.child(schema.TableReleaseLabel, ident(l.ID), l.Name, l.Catno)
	}
	for _, g := range r.Genres {
		b.child(schema.TableReleaseGenre, g)
	}
	for _, s := range r.Styles {
		b.child(schema.TableReleaseStyle, s)
	}
	for i, f := range r.Formats {
		b.child(schema.TableReleaseFormat,
			itoa(i+1), f.Name, ident(f.Qty), f.Text, strings.Join(f.Descriptions, FormatDescriptionSeparator))
	}
	for _, id := range r.Identifiers {
		b.child(schema.TableReleaseIdentifier, id.Description, id.Type, id.Value)
	}

	seq := 0
	var walk func(tracks []dump.Track, parent string)
	walk = func(tracks []dump.Track, parent string) {
		for _, t := range tracks {
			seq++
			s := itoa(seq)
			b.child(schema.TableReleaseTrack, s, ident(t.Position), parent, t.Title, ident(t.Duration))
			for i, a := range t.Artists {
				b.child(schema.TableReleaseTrackArtist, append([]string{s}, creditValues(i, a, false)...)...)
			}
			for i, a := range t.ExtraArtists {
				b.child(schema.TableReleaseTrackArtist, append([]string{s}, creditValues(i, a, true)...)...)
			}
			walk(t.SubTracks, s)
		}
	}
	walk(r.Tracklist, "")

	for i, v := range r.Videos {
		b.child(schema.TableReleaseVideo, videoValues(i, v)...)
	}
	for _, c := range r.Companies {
		b.child(schema.TableReleaseCompany,
			ident(c.ID), c.Name, c.Catno, ident(c.EntityType), c.EntityTypeName)
	}
}

// creditValues returns artist_id artist_name extra anv position join_string role.
func creditValues(i int, a dump.Credit, extra bool) []string {
	return []string{ident(a.ID), a.Name, boolText(extra), a.ANV, itoa(i + 1), a.Join, a.Role}
}
