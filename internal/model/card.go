package model

import (
	"fmt"
	"slices"
	"time"

	"github.com/sakif/cardbook/internal/apperror"
)

// JobField is one piece of job info plus its visibility on the homepage.
type JobField struct {
	Content  string `json:"content"  bson:"content"`
	IsPublic bool   `json:"isPublic" bson:"isPublic"`
}

// JobInfo holds the six job-info fields of a card. The json keys double as
// the field names accepted by the visibility toggle.
type JobInfo struct {
	Name        JobField `json:"name"        bson:"name"`
	CompanyName JobField `json:"companyName" bson:"companyName"`
	JobTitle    JobField `json:"jobTitle"    bson:"jobTitle"`
	PhoneNumber JobField `json:"phoneNumber" bson:"phoneNumber"`
	City        JobField `json:"city"        bson:"city"`
	Domain      JobField `json:"domain"      bson:"domain"`
}

// JobInfoFields lists the known job-info keys in display order.
var JobInfoFields = []string{"name", "companyName", "jobTitle", "phoneNumber", "city", "domain"}

// Field returns a pointer to the named field so callers can flip it in place
// on their own copy of the card.
func (j *JobInfo) Field(name string) (*JobField, bool) {
	switch name {
	case "name":
		return &j.Name, true
	case "companyName":
		return &j.CompanyName, true
	case "jobTitle":
		return &j.JobTitle, true
	case "phoneNumber":
		return &j.PhoneNumber, true
	case "city":
		return &j.City, true
	case "domain":
		return &j.Domain, true
	}
	return nil, false
}

// Visible returns the fields a viewer may see. With all set, private fields
// are included too (the owner's view).
func (j JobInfo) Visible(all bool) map[string]JobField {
	out := make(map[string]JobField, len(JobInfoFields))
	for _, name := range JobInfoFields {
		f, _ := j.Field(name)
		if all || f.IsPublic {
			out[name] = *f
		}
	}
	return out
}

// LinkType is the kind of a homepage link; the front-end picks an icon by it.
type LinkType string

const (
	LinkGitHub   LinkType = "GITHUB"
	LinkLine     LinkType = "LINE"
	LinkIG       LinkType = "IG"
	LinkFacebook LinkType = "FACEBOOK"
	LinkLinkedIn LinkType = "LINKEDIN"
	LinkEmail    LinkType = "EMAIL"
	LinkPlain    LinkType = "LINK"
)

type HomepageLink struct {
	ID       string   `json:"id"                 bson:"id"`
	Type     LinkType `json:"type"               bson:"type"`
	Title    string   `json:"title"              bson:"title"`
	SubTitle string   `json:"subTitle,omitempty" bson:"subTitle,omitempty"`
	URL      string   `json:"link"               bson:"link"`
	Icon     string   `json:"icon,omitempty"     bson:"icon,omitempty"`
}

type LayoutDirection string

const (
	LayoutHorizontal LayoutDirection = "horizontal"
	LayoutVertical   LayoutDirection = "vertical"
)

// CardImageData holds the rendered front/back images produced by the
// editor. Both are opaque strings (usually data URLs).
type CardImageData struct {
	Front string `json:"front" bson:"front"`
	Back  string `json:"back"  bson:"back"`
}

// Card is a user's shareable professional-identity record.
//
// HomepageLinks is an owned, ordered sequence. The link methods below never
// mutate it in place: they build a new slice and return an updated copy of
// the card, which the repository then persists as a whole.
type Card struct {
	ID              string          `json:"id"              bson:"_id"`
	OwnerID         string          `json:"userId"          bson:"userId"`
	JobInfo         JobInfo         `json:"jobInfo"         bson:"jobInfo"`
	HomepageTitle   string          `json:"homepageTitle"   bson:"homepageTitle"`
	HomepageLinks   []HomepageLink  `json:"homepageLink"    bson:"homepageLink"`
	IsPublished     bool            `json:"isPublished"     bson:"isPublished"`
	LayoutDirection LayoutDirection `json:"layoutDirection" bson:"layoutDirection"`
	CardImageData   CardImageData   `json:"cardImageData"   bson:"cardImageData"`
	CreatedAt       time.Time       `json:"createdAt"       bson:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"       bson:"updatedAt"`
}

// CardSummary is the public-facing slice of a card that is joined onto
// bookmark rows, card-wall entries and inbox messages. Private job-info
// fields are left empty.
type CardSummary struct {
	CardID        string        `json:"cardId"`
	Name          string        `json:"name"`
	CompanyName   string        `json:"companyName"`
	JobTitle      string        `json:"jobTitle"`
	City          string        `json:"city,omitempty"`
	Domain        string        `json:"domain,omitempty"`
	Avatar        string        `json:"avatar"`
	CardImageData CardImageData `json:"cardImageData"`
}

// Summarize builds the public summary of c. avatar comes from the owner.
func (c Card) Summarize(avatar string) CardSummary {
	pub := func(f JobField) string {
		if f.IsPublic {
			return f.Content
		}
		return ""
	}
	return CardSummary{
		CardID:        c.ID,
		Name:          pub(c.JobInfo.Name),
		CompanyName:   pub(c.JobInfo.CompanyName),
		JobTitle:      pub(c.JobInfo.JobTitle),
		City:          pub(c.JobInfo.City),
		Domain:        pub(c.JobInfo.Domain),
		Avatar:        avatar,
		CardImageData: c.CardImageData,
	}
}

func (c Card) linkIndex(linkID string) int {
	return slices.IndexFunc(c.HomepageLinks, func(l HomepageLink) bool { return l.ID == linkID })
}

// WithLink appends link at the end of the homepage link list.
func (c Card) WithLink(link HomepageLink) Card {
	c.HomepageLinks = append(slices.Clone(c.HomepageLinks), link)
	return c
}

// WithEditedLink replaces the link carrying edit.ID, keeping its position.
func (c Card) WithEditedLink(edit HomepageLink) (Card, error) {
	i := c.linkIndex(edit.ID)
	if i < 0 {
		return c, apperror.NotFound("link", edit.ID)
	}
	links := slices.Clone(c.HomepageLinks)
	links[i] = edit
	c.HomepageLinks = links
	return c, nil
}

// WithoutLink removes the link with the given id.
func (c Card) WithoutLink(linkID string) (Card, error) {
	i := c.linkIndex(linkID)
	if i < 0 {
		return c, apperror.NotFound("link", linkID)
	}
	c.HomepageLinks = slices.Delete(slices.Clone(c.HomepageLinks), i, i+1)
	return c, nil
}

// WithSwappedLink exchanges the link with the one currently at newIndex.
// It is a swap, not a move: the links in between keep their positions.
func (c Card) WithSwappedLink(linkID string, newIndex int) (Card, error) {
	i := c.linkIndex(linkID)
	if i < 0 {
		return c, apperror.ValidationFailed("linkId", fmt.Sprintf("link %s does not belong to this card", linkID))
	}
	links, err := swapAt(c.HomepageLinks, i, newIndex)
	if err != nil {
		return c, err
	}
	c.HomepageLinks = links
	return c, nil
}

// WithToggledField flips IsPublic on exactly one job-info field.
func (c Card) WithToggledField(name string) (Card, error) {
	f, ok := c.JobInfo.Field(name)
	if !ok {
		return c, apperror.ValidationFailed("fieldName",
			fmt.Sprintf("fieldName must be one of %v", JobInfoFields))
	}
	f.IsPublic = !f.IsPublic
	return c, nil
}

// swapAt returns a copy of items with positions from and to exchanged.
// to must be a valid index; from is trusted (the caller found it).
func swapAt[T any](items []T, from, to int) ([]T, error) {
	if to < 0 || to >= len(items) {
		return nil, apperror.ValidationFailed("newIndex",
			fmt.Sprintf("newIndex must be between 0 and %d", len(items)-1))
	}
	out := slices.Clone(items)
	out[from], out[to] = out[to], out[from]
	return out, nil
}
