package model

import "github.com/google/uuid"

type Group struct {
	ID      GroupID
	Name    string
	Members []uuid.UUID
}

type User struct {
	ID    uuid.UUID
	Login string
}
