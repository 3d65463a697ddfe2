//go:build linux || freebsd || openbsd || netbsd

package wlr

// Bindings for wlr-data-control-unstable-v1, in the shape deedles.dev/wl
// generates them.

import (
	"fmt"
	"os"

	wl "deedles.dev/wl/client"
	"deedles.dev/wl/wire"
)

const (
	ZwlrDataControlManagerV1Interface = "zwlr_data_control_manager_v1"
	ZwlrDataControlManagerV1Version   = 2
)

type ZwlrDataControlManagerV1 struct {
	OnDelete func()

	state wire.State
	id    uint32
}

func NewZwlrDataControlManagerV1(state wire.State) *ZwlrDataControlManagerV1 {
	return &ZwlrDataControlManagerV1{state: state}
}

func BindZwlrDataControlManagerV1(state wire.State, registry wire.Binder, name, version uint32) *ZwlrDataControlManagerV1 {
	obj := NewZwlrDataControlManagerV1(state)
	state.Add(obj)
	registry.Bind(name, wire.NewID{Interface: ZwlrDataControlManagerV1Interface, Version: version, ID: obj.ID()})
	return obj
}

func (obj *ZwlrDataControlManagerV1) State() wire.State { return obj.state }

func (obj *ZwlrDataControlManagerV1) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{
		Interface: ZwlrDataControlManagerV1Interface,
		Type:      "event",
		Op:        msg.Op(),
	}
}

func (obj *ZwlrDataControlManagerV1) ID() uint32      { return obj.id }
func (obj *ZwlrDataControlManagerV1) SetID(id uint32) { obj.id = id }

func (obj *ZwlrDataControlManagerV1) Delete() {
	if obj.OnDelete != nil {
		obj.OnDelete()
	}
}

func (obj *ZwlrDataControlManagerV1) String() string {
	return fmt.Sprintf("%v(%v)", ZwlrDataControlManagerV1Interface, obj.id)
}

func (obj *ZwlrDataControlManagerV1) MethodName(uint16) string { return "unknown method" }

func (obj *ZwlrDataControlManagerV1) Interface() string { return ZwlrDataControlManagerV1Interface }

func (obj *ZwlrDataControlManagerV1) Version() uint32 { return ZwlrDataControlManagerV1Version }

func (obj *ZwlrDataControlManagerV1) CreateDataSource() (id *ZwlrDataControlSourceV1) {
	builder := wire.NewMessage(obj, 0)

	id = NewZwlrDataControlSourceV1(obj.state)
	obj.state.Add(id)
	builder.WriteObject(id)

	builder.Method = "create_data_source"
	builder.Args = []any{id}
	obj.state.Enqueue(builder)
	return id
}

func (obj *ZwlrDataControlManagerV1) GetDataDevice(seat *wl.Seat) (id *ZwlrDataControlDeviceV1) {
	builder := wire.NewMessage(obj, 1)

	id = NewZwlrDataControlDeviceV1(obj.state)
	obj.state.Add(id)
	builder.WriteObject(id)
	builder.WriteObject(seat)

	builder.Method = "get_data_device"
	builder.Args = []any{id, seat}
	obj.state.Enqueue(builder)
	return id
}

func (obj *ZwlrDataControlManagerV1) Destroy() {
	builder := wire.NewMessage(obj, 2)
	builder.Method = "destroy"
	builder.Args = []any{}
	obj.state.Enqueue(builder)
}

const (
	ZwlrDataControlDeviceV1Interface = "zwlr_data_control_device_v1"
	ZwlrDataControlDeviceV1Version   = 2
)

// ZwlrDataControlDeviceV1Listener receives the seat's selection offers. A
// nil offer means the selection is empty.
type ZwlrDataControlDeviceV1Listener interface {
	DataOffer(id *ZwlrDataControlOfferV1)
	Selection(id *ZwlrDataControlOfferV1)
	Finished()
	PrimarySelection(id *ZwlrDataControlOfferV1)
}

type ZwlrDataControlDeviceV1 struct {
	Listener ZwlrDataControlDeviceV1Listener
	OnDelete func()

	state wire.State
	id    uint32
}

func NewZwlrDataControlDeviceV1(state wire.State) *ZwlrDataControlDeviceV1 {
	return &ZwlrDataControlDeviceV1{state: state}
}

func (obj *ZwlrDataControlDeviceV1) State() wire.State { return obj.state }

func (obj *ZwlrDataControlDeviceV1) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		id := NewZwlrDataControlOfferV1(obj.state)
		id.SetID(msg.ReadUint())
		obj.state.Add(id)

		if err := msg.Err(); err != nil {
			return err
		}
		if obj.Listener == nil {
			return nil
		}
		obj.Listener.DataOffer(id)
		return nil

	case 1, 3:
		id, _ := obj.state.Get(msg.ReadUint()).(*ZwlrDataControlOfferV1)

		if err := msg.Err(); err != nil {
			return err
		}
		if obj.Listener == nil {
			return nil
		}
		if msg.Op() == 1 {
			obj.Listener.Selection(id)
		} else {
			obj.Listener.PrimarySelection(id)
		}
		return nil

	case 2:
		if err := msg.Err(); err != nil {
			return err
		}
		if obj.Listener == nil {
			return nil
		}
		obj.Listener.Finished()
		return nil
	}

	return wire.UnknownOpError{
		Interface: ZwlrDataControlDeviceV1Interface,
		Type:      "event",
		Op:        msg.Op(),
	}
}

func (obj *ZwlrDataControlDeviceV1) ID() uint32      { return obj.id }
func (obj *ZwlrDataControlDeviceV1) SetID(id uint32) { obj.id = id }

func (obj *ZwlrDataControlDeviceV1) Delete() {
	if obj.OnDelete != nil {
		obj.OnDelete()
	}
}

func (obj *ZwlrDataControlDeviceV1) String() string {
	return fmt.Sprintf("%v(%v)", ZwlrDataControlDeviceV1Interface, obj.id)
}

func (obj *ZwlrDataControlDeviceV1) MethodName(op uint16) string {
	switch op {
	case 0:
		return "data_offer"
	case 1:
		return "selection"
	case 2:
		return "finished"
	case 3:
		return "primary_selection"
	}
	return "unknown method"
}

func (obj *ZwlrDataControlDeviceV1) Interface() string { return ZwlrDataControlDeviceV1Interface }

func (obj *ZwlrDataControlDeviceV1) Version() uint32 { return ZwlrDataControlDeviceV1Version }

// SetSelection publishes source as the selection; nil clears it.
func (obj *ZwlrDataControlDeviceV1) SetSelection(source *ZwlrDataControlSourceV1) {
	builder := wire.NewMessage(obj, 0)
	builder.WriteObject(source)
	builder.Method = "set_selection"
	builder.Args = []any{source}
	obj.state.Enqueue(builder)
}

func (obj *ZwlrDataControlDeviceV1) Destroy() {
	builder := wire.NewMessage(obj, 1)
	builder.Method = "destroy"
	builder.Args = []any{}
	obj.state.Enqueue(builder)
}

// SetPrimarySelection needs version 2; compositors without primary
// selection ignore it.
func (obj *ZwlrDataControlDeviceV1) SetPrimarySelection(source *ZwlrDataControlSourceV1) {
	builder := wire.NewMessage(obj, 2)
	builder.WriteObject(source)
	builder.Method = "set_primary_selection"
	builder.Args = []any{source}
	obj.state.Enqueue(builder)
}

const (
	ZwlrDataControlSourceV1Interface = "zwlr_data_control_source_v1"
	ZwlrDataControlSourceV1Version   = 1
)

// ZwlrDataControlSourceV1Listener serves our published selection. Send
// must write the data for mimeType to fd and close it.
type ZwlrDataControlSourceV1Listener interface {
	Send(mimeType string, fd *os.File)
	Cancelled()
}

type ZwlrDataControlSourceV1 struct {
	Listener ZwlrDataControlSourceV1Listener
	OnDelete func()

	state wire.State
	id    uint32
}

func NewZwlrDataControlSourceV1(state wire.State) *ZwlrDataControlSourceV1 {
	return &ZwlrDataControlSourceV1{state: state}
}

func (obj *ZwlrDataControlSourceV1) State() wire.State { return obj.state }

func (obj *ZwlrDataControlSourceV1) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		mimeType := msg.ReadString()
		fd := msg.ReadFile()

		if err := msg.Err(); err != nil {
			return err
		}
		if obj.Listener == nil {
			_ = fd.Close()
			return nil
		}
		obj.Listener.Send(mimeType, fd)
		return nil

	case 1:
		if err := msg.Err(); err != nil {
			return err
		}
		if obj.Listener == nil {
			return nil
		}
		obj.Listener.Cancelled()
		return nil
	}

	return wire.UnknownOpError{
		Interface: ZwlrDataControlSourceV1Interface,
		Type:      "event",
		Op:        msg.Op(),
	}
}

func (obj *ZwlrDataControlSourceV1) ID() uint32      { return obj.id }
func (obj *ZwlrDataControlSourceV1) SetID(id uint32) { obj.id = id }

func (obj *ZwlrDataControlSourceV1) Delete() {
	if obj.OnDelete != nil {
		obj.OnDelete()
	}
}

func (obj *ZwlrDataControlSourceV1) String() string {
	return fmt.Sprintf("%v(%v)", ZwlrDataControlSourceV1Interface, obj.id)
}

func (obj *ZwlrDataControlSourceV1) MethodName(op uint16) string {
	switch op {
	case 0:
		return "send"
	case 1:
		return "cancelled"
	}
	return "unknown method"
}

func (obj *ZwlrDataControlSourceV1) Interface() string { return ZwlrDataControlSourceV1Interface }

func (obj *ZwlrDataControlSourceV1) Version() uint32 { return ZwlrDataControlSourceV1Version }

// Offer advertises mimeType; it must precede SetSelection.
func (obj *ZwlrDataControlSourceV1) Offer(mimeType string) {
	builder := wire.NewMessage(obj, 0)
	builder.WriteString(mimeType)
	builder.Method = "offer"
	builder.Args = []any{mimeType}
	obj.state.Enqueue(builder)
}

func (obj *ZwlrDataControlSourceV1) Destroy() {
	builder := wire.NewMessage(obj, 1)
	builder.Method = "destroy"
	builder.Args = []any{}
	obj.state.Enqueue(builder)
}

const (
	ZwlrDataControlOfferV1Interface = "zwlr_data_control_offer_v1"
	ZwlrDataControlOfferV1Version   = 1
)

type ZwlrDataControlOfferV1Listener interface {
	Offer(mimeType string)
}

// ZwlrDataControlOfferV1 is content another client published.
type ZwlrDataControlOfferV1 struct {
	Listener ZwlrDataControlOfferV1Listener
	OnDelete func()

	state wire.State
	id    uint32
}

func NewZwlrDataControlOfferV1(state wire.State) *ZwlrDataControlOfferV1 {
	return &ZwlrDataControlOfferV1{state: state}
}

func (obj *ZwlrDataControlOfferV1) State() wire.State { return obj.state }

func (obj *ZwlrDataControlOfferV1) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		mimeType := msg.ReadString()

		if err := msg.Err(); err != nil {
			return err
		}
		if obj.Listener == nil {
			return nil
		}
		obj.Listener.Offer(mimeType)
		return nil
	}

	return wire.UnknownOpError{
		Interface: ZwlrDataControlOfferV1Interface,
		Type:      "event",
		Op:        msg.Op(),
	}
}

func (obj *ZwlrDataControlOfferV1) ID() uint32      { return obj.id }
func (obj *ZwlrDataControlOfferV1) SetID(id uint32) { obj.id = id }

func (obj *ZwlrDataControlOfferV1) Delete() {
	if obj.OnDelete != nil {
		obj.OnDelete()
	}
}

func (obj *ZwlrDataControlOfferV1) String() string {
	return fmt.Sprintf("%v(%v)", ZwlrDataControlOfferV1Interface, obj.id)
}

func (obj *ZwlrDataControlOfferV1) MethodName(op uint16) string {
	if op == 0 {
		return "offer"
	}
	return "unknown method"
}

func (obj *ZwlrDataControlOfferV1) Interface() string { return ZwlrDataControlOfferV1Interface }

func (obj *ZwlrDataControlOfferV1) Version() uint32 { return ZwlrDataControlOfferV1Version }

// Receive asks the owner to write mimeType into fd.
func (obj *ZwlrDataControlOfferV1) Receive(mimeType string, fd *os.File) {
	builder := wire.NewMessage(obj, 0)
	builder.WriteString(mimeType)
	builder.WriteFile(fd)
	builder.Method = "receive"
	builder.Args = []any{mimeType, fd}
	obj.state.Enqueue(builder)
}

func (obj *ZwlrDataControlOfferV1) Destroy() {
	builder := wire.NewMessage(obj, 1)
	builder.Method = "destroy"
	builder.Args = []any{}
	obj.state.Enqueue(builder)
}
