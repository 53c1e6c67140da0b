// Package version holds release metadata. Version and Commit may be
// overridden at link time with -ldflags "-X".
package version

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	Version     = "3.1.0"
	Name        = "Filters & Themes Edition"
	ReleaseDate = "2025-12-09"
	Commit      = "dev"
)

// Info is the body of GET /api/version.
type Info struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	Commit      string `json:"commit"`
}

func Current() Info {
	return Info{Version: Version, Name: Name, ReleaseDate: ReleaseDate, Commit: Commit}
}

// String renders e.g. "3.1.0 (Filters & Themes Edition, 2025-12-09)".
func (i Info) String() string {
	return i.Version + " (" + i.Name + ", " + i.ReleaseDate + ")"
}

func Handler(c echo.Context) error {
	return c.JSON(http.StatusOK, Current())
}
