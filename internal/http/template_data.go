package httpx

import (
	"net/http"

	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
)

// PageData is the value every page template is executed with.
type PageData struct {
	Title    string
	Page     string
	User     *domainauth.User
	DarkMode bool
	Flash    string
	Error    string
	// Next is the navigation intent carried by the login form.
	Next string
	// Data is page specific.
	Data any
}

// newPageData fills the fields shared by every page from the request.
func newPageData(r *http.Request, page string) PageData {
	d := PageData{Title: pageTitles[page], Page: page}
	if user, ok := GetUserFromContext(r.Context()); ok {
		d.User = user
	}
	return d
}
