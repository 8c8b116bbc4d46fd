package hospital

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("hospital not found")

type Hospital struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name" binding:"required"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Type      string `json:"type"`
	Class     string `json:"class"`
	Contact   string `json:"contact"`
	CreatedAt string `json:"created_at,omitempty"`
}

type UpsertRequest struct {
	Hospitals []Hospital `json:"hospitals" binding:"required,dive"`
}

type RenameRequest struct {
	OldName string `json:"old_name" binding:"required"`
	NewName string `json:"new_name" binding:"required"`
}

type NameTakenError struct {
	Name string
}

func (e *NameTakenError) Error() string {
	return fmt.Sprintf("hospital %q already exists", e.Name)
}
