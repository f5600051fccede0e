// Package gitrepo contains helpers for interrogating and manipulating Git repositories.
//
// It exposes RepositoryManager for inspecting branches, remotes, and status,
// along with supporting utilities consumed by audit and migrate services that
// need structured Git operations.
package gitrepo
