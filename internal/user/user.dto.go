package user

type CreateUserRequest struct {
	ClerkID  string `json:"clerk_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
}

// ProfileResponse is the user aggregate plus derived progression fields.
type ProfileResponse struct {
	User           *User    `json:"user"`
	NextLevelXP    int      `json:"next_level_xp"`
	UnlockedTitles []string `json:"unlocked_titles"`
}
