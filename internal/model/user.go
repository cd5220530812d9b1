package model

import "time"

// User is a registered customer account.  Checkout does not require an
// account; anonymous sessions get a surrogate owner ID instead.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique login email.
//  PasswordHash – bcrypt hash of the password.
//  FullName     – display name.
//  CreatedAt    – registration timestamp.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    FullName     string    // users.full_name
    CreatedAt    time.Time // users.created_at
}
