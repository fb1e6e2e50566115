package model

// Student is the authenticated exam taker. RollNumber is the stable identity
// used for all submission ownership checks.
type Student struct {
	RollNumber    int    `json:"roll_number"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	PasswordHash  string `json:"-"`
	ContactNumber string `json:"contact_number,omitempty"`
}

// StudentLoginRequest is the student login payload.
type StudentLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}
