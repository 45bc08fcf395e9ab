package decompose

import (
	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

var artistTables = []string{
	schema.TableArtist,
	schema.TableArtistAlias,
	schema.TableArtistNameVariation,
	schema.TableArtistURL,
	schema.TableGroupMember,
}

func decomposeArtist(a *dump.ArtistRecord, b *builder) {
	b.primary(b.id, a.Name, a.RealName, a.Profile, a.DataQuality)

	for _, alias := range a.Aliases {
		b.child(schema.TableArtistAlias, ident(alias.ID), alias.Name)
	}
	for _, name := range a.NameVariations {
		b.child(schema.TableArtistNameVariation, name)
	}
	for _, url := range a.URLs {
		if url = ident(url); url != "" {
			b.child(schema.TableArtistURL, url)
		}
	}
	// Membership is exported from the group side only; <groups> on the
	// member repeats the same pairs.
	for _, m := range a.Members {
		b.child(schema.TableGroupMember, ident(m.ID), m.Name)
	}
}
