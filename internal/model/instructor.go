package model

// Instructor owns exams and courses. Shown to students on the
// initialization screen so they can verify who set the exam.
type Instructor struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// InstructorLoginRequest is the instructor login payload.
type InstructorLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}
