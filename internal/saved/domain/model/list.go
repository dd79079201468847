package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visibility gates who may read a list.
type Visibility string

const (
	// VisibilityPublic lists are readable by anyone. The zero value is
	// treated as public for documents written before visibility existed.
	VisibilityPublic Visibility = "public"
	// VisibilityFollowers lists are readable by the owner and accounts
	// following the owner.
	VisibilityFollowers Visibility = "followers"
	// VisibilityPrivate lists are readable by the owner only.
	VisibilityPrivate Visibility = "private"
)

// ListDefinition describes one saved-place list owned by exactly one account.
type ListDefinition struct {
	ID          string     `json:"id" bson:"id"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	CoverImage  string     `json:"coverImage,omitempty" bson:"coverImage,omitempty"`
	Visibility  Visibility `json:"visibility,omitempty" bson:"visibility,omitempty"`
}

// NewListID generates a client-side list id: epoch-millis prefix for rough
// creation ordering plus a random suffix so ids are never reused.
func NewListID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), suffix)
}

// ValidateListName trims and validates a list name, returning the trimmed
// form.
func ValidateListName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("list name must not be empty")
	}
	return trimmed, nil
}

// ViewerRelation captures how the viewing account relates to a list owner.
type ViewerRelation struct {
	IsSelf     bool
	IsFollower bool
}
