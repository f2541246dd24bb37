package memory

import (
	"github.com/tinoosan/billy/internal/service/account"
	"github.com/tinoosan/billy/internal/service/pay"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ account.Repo   = (*Store)(nil)
	_ account.Writer = (*Store)(nil)
	_ pay.Repo       = (*Store)(nil)
	_ pay.Writer     = (*Store)(nil)
)
