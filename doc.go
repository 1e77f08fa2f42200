// Package main is the entry point of the member portal. The portal admits
// members, instructors and administrators through an identity provider and
// only lets a session through once the account behind it was approved. The
// JSON API is served by fiber, accounts are stored with gorm.
package main
