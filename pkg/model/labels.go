package model

import (
	"fmt"
	"image/color"
	"sort"
)

// Brand and label colors.
var (
	Ember        = color.RGBA{0xf1, 0x50, 0x2f, 0xff}
	EmberDeep    = color.RGBA{0x44, 0x11, 0x51, 0xff}
	Pending      = color.RGBA{0x8b, 0xc3, 0x4a, 0xff}
	LabelBgColor = color.RGBA{0xff, 0xff, 0xff, 0xe6}

	labelPalette = map[string]color.RGBA{
		"person":       {0xff, 0xd1, 0x66, 0xff},
		"location":     {0x06, 0xd6, 0xa0, 0xff},
		"food":         {0xef, 0x47, 0x6f, 0xff},
		"organization": {0x11, 0x8a, 0xb2, 0xff},
	}
)

// LabelColor returns the swatch for an entity label, Ember for unknown ones.
func LabelColor(label string) color.RGBA {
	if c, ok := labelPalette[label]; ok {
		return c
	}
	return Ember
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// LabelGroup is one sidebar category.
type LabelGroup struct {
	Label string
	Nodes []*GraphNode
}

// GroupNodesByLabel buckets nodes by label. Groups are sorted by label and
// nodes within a group by descending size, then id.
func GroupNodesByLabel(nodes map[string]*GraphNode) []LabelGroup {
	byLabel := make(map[string][]*GraphNode)
	for _, n := range nodes {
		byLabel[n.Label] = append(byLabel[n.Label], n)
	}
	groups := make([]LabelGroup, 0, len(byLabel))
	for label, list := range byLabel {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Size != list[j].Size {
				return list[i].Size > list[j].Size
			}
			return list[i].ID < list[j].ID
		})
		groups = append(groups, LabelGroup{Label: label, Nodes: list})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Label < groups[j].Label })
	return groups
}
