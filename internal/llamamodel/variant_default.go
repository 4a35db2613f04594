//go:build !yzma

package llamamodel

import "github.com/samcharles93/llmodel/internal/backend"

const buildVariant = backend.CPU
