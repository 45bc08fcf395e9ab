package decompose

import "github.com/JonMunkholm/dd2db/internal/dump"

// sample returns an entity with every repeated substructure present once,
// used to check row widths when a decomposer is built.
func sample(kind dump.Kind) dump.Entity {
	ref := dump.Ref{ID: "2", Name: "n"}
	credit := dump.Credit{ID: "2", Name: "n"}
	video := dump.Video{Src: "u", Duration: "1", Embed: "true"}

	switch kind {
	case dump.Artist:
		return &dump.ArtistRecord{
			ID:             1,
			URLs:           []string{"u"},
			NameVariations: []string{"n"},
			Aliases:        []dump.Ref{ref},
			Members:        []dump.Ref{ref},
		}
	case dump.Label:
		return &dump.LabelRecord{ID: 1, URLs: []string{"u"}, Sublabels: []dump.Ref{ref}, Parent: &ref}
	case dump.Master:
		return &dump.MasterRecord{
			ID:      1,
			Artists: []dump.Credit{credit},
			Genres:  []string{"g"},
			Styles:  []string{"s"},
			Videos:  []dump.Video{video},
		}
	case dump.Release:
		return &dump.ReleaseRecord{
			ID:          1,
			Artists:     []dump.Credit{credit},
			Labels:      []dump.LabelCredit{{ID: "2", Name: "n"}},
			Genres:      []string{"g"},
			Styles:      []string{"s"},
			Formats:     []dump.Format{{Name: "Vinyl", Descriptions: []string{"LP"}}},
			Identifiers: []dump.Identifier{{Type: "Barcode", Value: "1"}},
			Tracklist:   []dump.Track{{Title: "t", Artists: []dump.Credit{credit}}},
			Videos:      []dump.Video{video},
			Companies:   []dump.Company{{ID: "2", Name: "n"}},
		}
	}
	return nil
}
