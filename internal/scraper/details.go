package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"shiftsync/internal/model"
)

// Detail fragments are keyed by event id plus one of these suffixes.
const (
	nameSuffix     = "evt"
	locationSuffix = "fac"
)

// detail is the name and location the page holds for one event id.
type detail struct {
	Name     string
	Location string
}

// detailIndex maps event ids to their detail fragments. It is built once
// per page so each day cell does a map lookup instead of a document scan.
type detailIndex map[string]detail

func buildDetailIndex(doc *goquery.Document) detailIndex {
	idx := make(detailIndex)
	doc.Find("div[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		text := cleanText(s.Text())
		switch {
		case strings.HasSuffix(id, nameSuffix) && len(id) > len(nameSuffix):
			key := strings.TrimSuffix(id, nameSuffix)
			d := idx[key]
			if d.Name == "" {
				d.Name = text
			}
			idx[key] = d
		case strings.HasSuffix(id, locationSuffix) && len(id) > len(locationSuffix):
			key := strings.TrimSuffix(id, locationSuffix)
			d := idx[key]
			if d.Location == "" {
				d.Location = text
			}
			idx[key] = d
		}
	})
	return idx
}

// lookup returns the detail for id with placeholders for anything missing.
func (idx detailIndex) lookup(id string) detail {
	d := idx[id]
	if d.Name == "" {
		d.Name = model.UnknownEvent
	}
	if d.Location == "" {
		d.Location = model.UnknownLocation
	}
	return d
}
