package handlers

import (
	"net/url"
	"strconv"

	"piskovna/internal/models"
)

// listParams are the query keys that select a filtered list.
var listParams = []string{"title", "author", "category", "status", "date", "sort", "dir", "page"}

func hasListQuery(q url.Values) bool {
	for _, k := range listParams {
		if q.Has(k) {
			return true
		}
	}
	return false
}

// filterFromQuery reads a list filter from query parameters.
func filterFromQuery(q url.Values) models.PostFilter {
	page, _ := strconv.Atoi(q.Get("page"))
	return models.PostFilter{
		Title:    q.Get("title"),
		Author:   q.Get("author"),
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Date:     q.Get("date"),
		Sort:     q.Get("sort"),
		Desc:     q.Get("dir") == "desc",
		Page:     page,
	}
}

// filterQuery is the inverse of filterFromQuery. Empty fields are left out.
func filterQuery(f models.PostFilter) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("title", f.Title)
	set("author", f.Author)
	set("category", f.Category)
	set("status", f.Status)
	set("date", f.Date)
	set("sort", f.Sort)
	if f.Desc {
		q.Set("dir", "desc")
	} else {
		q.Set("dir", "asc")
	}
	if f.Page > 1 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	return q
}
