package model

// User is a simple contact record managed through /api/users.
//
// IDs are sequential integers handed out by the database. A deleted user's ID
// is never handed out again (SQLite AUTOINCREMENT guarantees this).
// Email is unique across live users; the comparison is an exact string match.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserPatch is the body of PUT /api/users/{id}.
type UserPatch struct {
	Name  Optional[string] `json:"name"`
	Email Optional[string] `json:"email"`
}

// Apply merges the patch into the user. Omitted fields are left untouched.
func (u *User) Apply(patch UserPatch) {
	if patch.Name.Valid {
		u.Name = patch.Name.Value
	}
	if patch.Email.Valid {
		u.Email = patch.Email.Value
	}
}
