package decompose

import (
	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

var labelTables = []string{
	schema.TableLabel,
	schema.TableLabelURL,
	schema.TableLabelSublabel,
}

func decomposeLabel(l *dump.LabelRecord, b *builder) {
	var parentID, parentName string
	if l.Parent != nil {
		parentID, parentName = ident(l.Parent.ID), l.Parent.Name
	}
	b.primary(b.id, l.Name, l.ContactInfo, l.Profile, parentID, parentName, l.DataQuality)

	for _, url := range l.URLs {
		if url = ident(url); url != "" {
			b.child(schema.TableLabelURL, url)
		}
	}
	for _, sub := range l.Sublabels {
		b.child(schema.TableLabelSublabel, ident(sub.ID), sub.Name)
	}
}
