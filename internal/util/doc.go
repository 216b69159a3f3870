// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across Ollama OnDemand:
// atomic file writes for crash-safe persistence and rune/width-aware
// string truncation for display.
package util
