// Package factory builds pluggable modules (optimization backends, audit
// stores, metrics sinks) from a type name and a raw settings map:
//
//	reg := factory.NewRegistry[audit.Store]()
//	_ = reg.Register("sqlite", func(conf map[string]any) (audit.Store, error) {
//		c := audit.SQLiteConfig{Path: "audit.db"}
//		if err := factory.Decode(conf, &c); err != nil {
//			return nil, err
//		}
//		return audit.NewSQLiteStore(c.Path)
//	})
//	store, err := reg.Create(factory.ModuleConfig{Type: "sqlite"})
package factory
