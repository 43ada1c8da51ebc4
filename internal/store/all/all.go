// Package all registers every store backend. Import it for side effects.
package all

import (
	_ "github.com/albapepper/buzzwatch/internal/store/csvstore"
	_ "github.com/albapepper/buzzwatch/internal/store/mysqlstore"
	_ "github.com/albapepper/buzzwatch/internal/store/pgstore"
	_ "github.com/albapepper/buzzwatch/internal/store/sqlitestore"
)
