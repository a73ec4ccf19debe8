// Package tests holds cross-package integration tests that drive whole
// nodes through their admin API.
package tests
