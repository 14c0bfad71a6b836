package dto

import "github.com/baechuer/meeting-machine/internal/application/signup"

// -------- Signup --------

type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (r SignupRequest) ToInput() signup.Input {
	return signup.Input{
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}
