package auth

import "time"

// User is one account record as persisted in the user bucket. The
// password hash and reset-token fields never leave the auth package.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash []byte `json:"password_hash"`
	Role         string `json:"role"`
	IsActive     bool   `json:"is_active"`

	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Company      string `json:"company,omitempty"`
	DOB          string `json:"dob,omitempty"`
	BirthPlace   string `json:"birth_place,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
	Address      string `json:"address,omitempty"`

	ResetToken        string    `json:"reset_token,omitempty"`
	ResetTokenExpires time.Time `json:"reset_token_expires,omitempty"`
}

// Profile is the self-service view of an account.
type Profile struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Company      string `json:"company"`
	DOB          string `json:"dob"`
	BirthPlace   string `json:"birth_place"`
	MobileNumber string `json:"mobile_number"`
	Address      string `json:"address"`
}

// AccountSummary is the admin listing view of an account.
type AccountSummary struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	IsActive     bool   `json:"is_active"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Company      string `json:"company"`
	DOB          string `json:"dob"`
	BirthPlace   string `json:"birth_place"`
	MobileNumber string `json:"mobile_number"`
	Address      string `json:"address"`
}

func (u *User) profile() Profile {
	return Profile{
		FullName:     u.FullName,
		Email:        u.Email,
		Company:      u.Company,
		DOB:          u.DOB,
		BirthPlace:   u.BirthPlace,
		MobileNumber: u.MobileNumber,
		Address:      u.Address,
	}
}

func (u *User) summary() AccountSummary {
	return AccountSummary{
		ID:           u.ID,
		Username:     u.Username,
		Role:         u.Role,
		IsActive:     u.IsActive,
		FullName:     u.FullName,
		Email:        u.Email,
		Company:      u.Company,
		DOB:          u.DOB,
		BirthPlace:   u.BirthPlace,
		MobileNumber: u.MobileNumber,
		Address:      u.Address,
	}
}
