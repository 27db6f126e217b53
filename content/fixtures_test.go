package content

func postRecord(id, slug, title, date string, meta map[string]any) Record {
	m := map[string]any{
		"publication_date": date,
	}
	for k, v := range meta {
		m[k] = v
	}
	return Record{ID: id, Slug: slug, Title: title, Type: KindPost, Metadata: m}
}

func option(key, value string) map[string]any {
	return map[string]any{"key": key, "value": value}
}

func categoryRef(id, slug string) map[string]any {
	return map[string]any{"id": id, "slug": slug, "title": slug, "metadata": map[string]any{"name": slug}}
}

// samplePosts is a small corpus used across the store tests. Store order is
// ramen, tacos, pastry, undated.
func samplePosts() []Record {
	return []Record{
		postRecord("p1", "tokyo-ramen", "Tokyo Ramen Crawl", "2024-03-10", map[string]any{
			"excerpt":    "Five bowls in one night",
			"city":       "Tokyo",
			"country":    "Japan",
			"region":     option("asia", "Asia"),
			"rating":     option("5", "Must Visit"),
			"tags":       []any{"street-food", "noodles"},
			"author":     map[string]any{"id": "a1", "slug": "mia", "title": "Mia"},
			"categories": []any{categoryRef("c1", "street-eats")},
		}),
		postRecord("p2", "oaxaca-tacos", "Tacos de Oaxaca", "2024-05-02", map[string]any{
			"excerpt":    "Mole, tlayudas and more",
			"city":       "Oaxaca",
			"country":    "Mexico",
			"region":     option("north-america", "North America"),
			"rating":     option("4", "Highly Recommended"),
			"tags":       []any{"street-food"},
			"author":     map[string]any{"id": "a2", "slug": "leo", "title": "Leo"},
			"categories": []any{categoryRef("c1", "street-eats")},
		}),
		postRecord("p3", "paris-pastry", "Paris Pastry Guide", "2023-11-20", map[string]any{
			"excerpt":    "Croissants worth the queue",
			"city":       "Paris",
			"country":    "France",
			"region":     option("europe", "Europe"),
			"rating":     option("5", "Must Visit"),
			"tags":       []any{"desserts"},
			"author":     map[string]any{"id": "a1", "slug": "mia", "title": "Mia"},
			"categories": []any{categoryRef("c2", "sweet-tooth")},
		}),
		postRecord("p4", "draft-notes", "Kyoto Notes", "", map[string]any{
			"excerpt": "Undated",
			"city":    "Kyoto",
			"country": "Japan",
			"region":  option("asia", "Asia"),
		}),
	}
}

func slugs(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Slug
	}
	return out
}
