package auth

// Action names a guarded operation.
type Action string

const (
	ActionUpdatePost     Action = "post:update"
	ActionDeletePost     Action = "post:delete"
	ActionPublishPost    Action = "post:publish"
	ActionDeleteComment  Action = "comment:delete"
	ActionDeleteMedia    Action = "media:delete"
	ActionManageTaxonomy Action = "taxonomy:manage"
)

// adminOnly actions are never granted to resource owners.
var adminOnly = map[Action]bool{
	ActionManageTaxonomy: true,
}

// Policy decides whether a principal may act on a resource.
type Policy struct{}

// Authorize grants admins everything and owners their own resources.
func (Policy) Authorize(p Principal, action Action, ownerID string) bool {
	if p.Anonymous() {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	if adminOnly[action] {
		return false
	}
	return ownerID != "" && p.ID == ownerID
}
