package model

// Role is how a viewer relates to the card whose homepage they open.
type Role string

const (
	RoleAuthor              Role = "author"
	RoleBookmarkedMember    Role = "bookmarkedMember"
	RoleNonBookmarkedMember Role = "nonBookmarkedMember"
	RoleGuest               Role = "guest"
)

// Visibility is what a role is allowed to see on a homepage.
type Visibility struct {
	PrivateFields bool // job-info fields with IsPublic=false
	Bookmark      bool // the viewer's own bookmark (note, tags, group, pin)
}

var visibilityByRole = map[Role]Visibility{
	RoleAuthor:              {PrivateFields: true},
	RoleBookmarkedMember:    {Bookmark: true},
	RoleNonBookmarkedMember: {},
	RoleGuest:               {},
}

// ResolveRole is a pure function of who is looking and what they saved.
// viewerID is empty for unauthenticated requests.
func ResolveRole(viewerID string, card Card, bookmarked bool) Role {
	switch {
	case viewerID == "":
		return RoleGuest
	case viewerID == card.OwnerID:
		return RoleAuthor
	case bookmarked:
		return RoleBookmarkedMember
	default:
		return RoleNonBookmarkedMember
	}
}

func (r Role) Visibility() Visibility {
	return visibilityByRole[r]
}

// HomepageView is the response of the homepage endpoint.
type HomepageView struct {
	Role            Role                `json:"role"`
	CardID          string              `json:"cardId"`
	JobInfo         map[string]JobField `json:"jobInfo"`
	HomepageTitle   string              `json:"homepageTitle"`
	HomepageLinks   []HomepageLink      `json:"homepageLink"`
	LayoutDirection LayoutDirection     `json:"layoutDirection"`
	CardImageData   CardImageData       `json:"cardImageData"`
	Avatar          string              `json:"avatar"`
	Bookmark        *Bookmark           `json:"bookmark,omitempty"`
}
