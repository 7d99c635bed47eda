package abi

import (
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

func PropertyBag_Handle_IsValid(h Handle) bool {
	return bags().IsValid(h)
}

// PropertyBag_Handle_Close releases the handle. The bag itself stays owned
// by its factory, recognizer or result.
func PropertyBag_Handle_Close(h Handle) spx.Status {
	return guard("PropertyBag_Handle_Close", func() error {
		return bags().Close(h)
	})
}

func withBag(h Handle, fn func(b *properties.Bag) error) error {
	b, err := bags().Get(h)
	if err != nil {
		return err
	}
	return fn(b)
}

func PropertyBag_Has(h Handle, name string, has *bool) spx.Status {
	return guard("PropertyBag_Has", func() error {
		if has == nil {
			return invalidArg("PropertyBag_Has", "nil output")
		}
		return withBag(h, func(b *properties.Bag) error {
			*has = b.Has(name)
			return nil
		})
	})
}

// PropertyBag_GetString copies the value of name, or def, into buf.
func PropertyBag_GetString(h Handle, name, def string, buf []byte) spx.Status {
	return guard("PropertyBag_GetString", func() error {
		return withBag(h, func(b *properties.Bag) error {
			return copyString(buf, b.GetString(name, def))
		})
	})
}

func PropertyBag_GetNumber(h Handle, name string, def int64, value *int64) spx.Status {
	return guard("PropertyBag_GetNumber", func() error {
		if value == nil {
			return invalidArg("PropertyBag_GetNumber", "nil output")
		}
		return withBag(h, func(b *properties.Bag) error {
			*value = b.GetNumber(name, def)
			return nil
		})
	})
}

func PropertyBag_GetBool(h Handle, name string, def bool, value *bool) spx.Status {
	return guard("PropertyBag_GetBool", func() error {
		if value == nil {
			return invalidArg("PropertyBag_GetBool", "nil output")
		}
		return withBag(h, func(b *properties.Bag) error {
			*value = b.GetBool(name, def)
			return nil
		})
	})
}

func PropertyBag_SetString(h Handle, name, value string) spx.Status {
	return guard("PropertyBag_SetString", func() error {
		return withBag(h, func(b *properties.Bag) error { return b.SetString(name, value) })
	})
}

func PropertyBag_SetNumber(h Handle, name string, value int64) spx.Status {
	return guard("PropertyBag_SetNumber", func() error {
		return withBag(h, func(b *properties.Bag) error { return b.SetNumber(name, value) })
	})
}

func PropertyBag_SetBool(h Handle, name string, value bool) spx.Status {
	return guard("PropertyBag_SetBool", func() error {
		return withBag(h, func(b *properties.Bag) error { return b.SetBool(name, value) })
	})
}
