// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build !windows

package fileio

func isSharingViolation(error) bool { return false }
