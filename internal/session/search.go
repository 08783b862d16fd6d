package session

import (
	"github.com/rpr-kontrol/kontrol/internal/audit"
	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// Search runs term over the archived sessions and keeps the result as the
// pending search state. The active session is not searched.
func (c *Controller) Search(term string, archived []*domain.Session) audit.SearchResult {
	res := audit.Search(archived, term)

	c.mu.Lock()
	c.search = res
	c.mu.Unlock()
	return res
}

// SearchState returns the pending search state.
func (c *Controller) SearchState() audit.SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

// ClearSearch resets the search state to inactive.
func (c *Controller) ClearSearch() {
	c.mu.Lock()
	c.search = audit.Inactive()
	c.mu.Unlock()
}
