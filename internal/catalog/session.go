package catalog

import errs "tablekv/pkg/errors"

// Session carries a caller's current namespace selection. The engine holds
// no ambient global selection; every call that needs a namespace receives a
// session explicitly.
type Session struct {
	namespace string
}

func NewSession() *Session {
	return &Session{}
}

// Use selects a namespace for subsequent calls, validating it exists.
func (s *Session) Use(c *Catalog, namespace string) error {
	if !c.NamespaceExists(namespace) {
		return errs.ErrNamespaceNotFound
	}
	s.namespace = namespace
	return nil
}

// Namespace returns the selected namespace, or ErrNoNamespace if the
// session has not selected one yet.
func (s *Session) Namespace() (string, error) {
	if s.namespace == "" {
		return "", errs.ErrNoNamespace
	}
	return s.namespace, nil
}
