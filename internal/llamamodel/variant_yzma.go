//go:build yzma

package llamamodel

import (
	"github.com/samcharles93/llmodel/internal/backend"
	_ "github.com/samcharles93/llmodel/internal/engine/yzma"
)

const buildVariant = backend.LlamaCpp
