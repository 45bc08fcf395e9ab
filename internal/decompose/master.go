package decompose

import (
	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

var masterTables = []string{
	schema.TableMaster,
	schema.TableMasterArtist,
	schema.TableMasterGenre,
	schema.TableMasterStyle,
	schema.TableMasterVideo,
}

func decomposeMaster(m *dump.MasterRecord, b *builder) {
	b.primary(b.id, m.Title, ident(m.Year), ident(m.MainRelease), m.DataQuality)

	for i, a := range m.Artists {
		b.child(schema.TableMasterArtist,
			ident(a.ID), a.Name, a.ANV, itoa(i+1), a.Join, a.Role)
	}
	for _, g := range m.Genres {
		b.child(schema.TableMasterGenre, g)
	}
	for _, s := range m.Styles {
		b.child(schema.TableMasterStyle, s)
	}
	for i, v := range m.Videos {
		b.child(schema.TableMasterVideo, videoValues(i, v)...)
	}
}

// videoValues returns the video columns after the foreign key.
func videoValues(i int, v dump.Video) []string {
	return []string{itoa(i + 1), ident(v.Duration), v.Title, v.Description, ident(v.Src), flagText(v.Embed)}
}
