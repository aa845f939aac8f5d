// Package middleware provides shared Gin middleware.
package middleware
