// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "math"

// DefaultPerPage is the number of rows the admin table shows per page.
const DefaultPerPage = 5

// Sortable columns of the post table.
var sortColumns = map[string]bool{
	"title":    true,
	"author":   true,
	"category": true,
	"date":     true,
	"status":   true,
	"id":       true,
}

// PostFilter narrows, orders and pages the admin post list. Text filters
// are case-insensitive substring matches; Date matches one calendar day.
type PostFilter struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
	Date     string `json:"date,omitempty"`
	Sort     string `json:"sort,omitempty"`
	Desc     bool   `json:"desc,omitempty"`
	Page     int    `json:"page,omitempty"`
	PerPage  int    `json:"-"`
}

// Normalize fills defaults and drops unknown sort columns. The default
// order is newest first.
func (f PostFilter) Normalize() PostFilter {
	if !sortColumns[f.Sort] {
		f.Sort = "id"
		f.Desc = true
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.Page < 1 {
		f.Page = 1
	}
	// Keeps Offset within a Postgres integer.
	if maxPage := math.MaxInt32 / f.PerPage; f.Page > maxPage {
		f.Page = maxPage
	}
	return f
}

// Offset returns the row offset of the current page.
func (f PostFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// TotalPages returns how many pages total rows span, never less than one.
func (f PostFilter) TotalPages(total int) int {
	if f.PerPage < 1 || total == 0 {
		return 1
	}
	return (total + f.PerPage - 1) / f.PerPage
}

// PostPage is one page of filtered posts plus the unpaged total.
type PostPage struct {
	Items []Post
	Total int
}
