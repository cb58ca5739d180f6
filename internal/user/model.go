package user

type User struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"-"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ID          string `json:"user_id"`
	Username    string `json:"username"`
}
