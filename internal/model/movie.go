package model

import "github.com/google/uuid"

const EmptyTitle string = ""

type MovieMeta struct {
	ID         uuid.UUID
	PosterLink string
	Title      string
	Genres     []string
	Year       int
	Rating     float64

	Overview string
}
