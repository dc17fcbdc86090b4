package daemon

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/metrics"
)

// D-Bus names of the service.
const (
	BusName    = "org.desktopintegration.DesktopEntry"
	Interface  = "org.desktopintegration.DesktopEntry"
	ObjectPath = dbus.ObjectPath("/org/desktopintegration/DesktopEntry")
)

// D-Bus error names returned to callers.
const (
	errInvalidArgs = "org.freedesktop.DBus.Error.InvalidArgs"
	errFileExists  = "org.freedesktop.DBus.Error.FileExists"
	errIO          = "org.freedesktop.DBus.Error.IOError"
)

const introspectXML = `
<node>
	<interface name="` + Interface + `">
		<method name="NewProcessEntry">
			<arg name="app_id" type="s" direction="in"/>
			<arg name="entry" type="s" direction="in"/>
		</method>
		<method name="NewSessionEntry">
			<arg name="app_id" type="s" direction="in"/>
			<arg name="entry" type="s" direction="in"/>
			<arg name="owner" type="s" direction="in"/>
		</method>
		<method name="NewPersistentEntry">
			<arg name="app_id" type="s" direction="in"/>
			<arg name="entry" type="s" direction="in"/>
			<arg name="owner" type="s" direction="in"/>
		</method>
		<method name="NewProcessIcon">
			<arg name="name" type="s" direction="in"/>
			<arg name="data" type="ay" direction="in"/>
		</method>
		<method name="NewSessionIcon">
			<arg name="name" type="s" direction="in"/>
			<arg name="data" type="ay" direction="in"/>
			<arg name="owner" type="s" direction="in"/>
		</method>
		<method name="NewPersistentIcon">
			<arg name="name" type="s" direction="in"/>
			<arg name="data" type="ay" direction="in"/>
			<arg name="owner" type="s" direction="in"/>
		</method>
		<method name="RemoveSessionOwner">
			<arg name="owner" type="s" direction="in"/>
		</method>
		<method name="RemovePersistentOwner">
			<arg name="owner" type="s" direction="in"/>
		</method>
		<method name="RegisterChangeHandler"/>
		<signal name="EntryChanged">
			<arg name="app_id" type="s"/>
		</signal>
		<signal name="IconChanged">
			<arg name="icon_name" type="s"/>
		</signal>
	</interface>` + introspect.IntrospectDataString + `</node>`

// Registrar is the part of the lifetime manager exposed over the bus.
type Registrar interface {
	RegisterEntry(text, appID string, lt domain.Lifetime) error
	RegisterIcon(name string, data []byte, lt domain.Lifetime) error
	RemoveLifetime(lt domain.Lifetime, reason string) error
	RegisterChangeHandler(pid uint32)
}

// CallerResolver maps a bus sender to its process id.
type CallerResolver interface {
	CallerPID(sender dbus.Sender) (uint32, error)
}

// busCallers asks the bus daemon for the sender's pid.
type busCallers struct {
	conn *dbus.Conn
}

// NewBusCallers creates a resolver backed by the bus daemon.
func NewBusCallers(conn *dbus.Conn) CallerResolver {
	return &busCallers{conn: conn}
}

func (b *busCallers) CallerPID(sender dbus.Sender) (uint32, error) {
	var pid uint32
	err := b.conn.BusObject().
		Call("org.freedesktop.DBus.GetConnectionUnixProcessID", 0, string(sender)).
		Store(&pid)
	if err != nil {
		return 0, fmt.Errorf("resolve pid of %s: %w", sender, err)
	}
	return pid, nil
}

// Service exports the lifetime manager on the session bus.
// Each exported method is one D-Bus method of Interface.
type Service struct {
	manager Registrar
	callers CallerResolver
	logger  *zap.Logger
}

// NewService creates the bus object.
func NewService(manager Registrar, callers CallerResolver, logger *zap.Logger) *Service {
	return &Service{manager: manager, callers: callers, logger: logger}
}

// NewProcessEntry registers an entry that lives as long as the calling process.
func (s *Service) NewProcessEntry(sender dbus.Sender, appID, text string) *dbus.Error {
	log := s.requestLogger("NewProcessEntry", sender)
	pid, err := s.callers.CallerPID(sender)
	if err != nil {
		log.Warn("caller pid unavailable", zap.Error(err))
		return dbus.MakeFailedError(err)
	}
	lt := domain.ProcessLifetime(pid)
	return s.reply(log, lt, s.manager.RegisterEntry(text, appID, lt))
}

// NewSessionEntry registers an entry that lives until the daemon restarts.
func (s *Service) NewSessionEntry(sender dbus.Sender, appID, text, owner string) *dbus.Error {
	log := s.requestLogger("NewSessionEntry", sender)
	lt := domain.SessionLifetime(owner)
	return s.reply(log, lt, s.manager.RegisterEntry(text, appID, lt))
}

// NewPersistentEntry registers an entry that lives until its owner removes it.
func (s *Service) NewPersistentEntry(sender dbus.Sender, appID, text, owner string) *dbus.Error {
	log := s.requestLogger("NewPersistentEntry", sender)
	lt := domain.PersistentLifetime(owner)
	return s.reply(log, lt, s.manager.RegisterEntry(text, appID, lt))
}

// NewProcessIcon registers an icon that lives as long as the calling process.
func (s *Service) NewProcessIcon(sender dbus.Sender, name string, data []byte) *dbus.Error {
	log := s.requestLogger("NewProcessIcon", sender)
	pid, err := s.callers.CallerPID(sender)
	if err != nil {
		log.Warn("caller pid unavailable", zap.Error(err))
		return dbus.MakeFailedError(err)
	}
	lt := domain.ProcessLifetime(pid)
	return s.reply(log, lt, s.manager.RegisterIcon(name, data, lt))
}

// NewSessionIcon registers an icon that lives until the daemon restarts.
func (s *Service) NewSessionIcon(sender dbus.Sender, name string, data []byte, owner string) *dbus.Error {
	log := s.requestLogger("NewSessionIcon", sender)
	lt := domain.SessionLifetime(owner)
	return s.reply(log, lt, s.manager.RegisterIcon(name, data, lt))
}

// NewPersistentIcon registers an icon that lives until its owner removes it.
func (s *Service) NewPersistentIcon(sender dbus.Sender, name string, data []byte, owner string) *dbus.Error {
	log := s.requestLogger("NewPersistentIcon", sender)
	lt := domain.PersistentLifetime(owner)
	return s.reply(log, lt, s.manager.RegisterIcon(name, data, lt))
}

// RemoveSessionOwner removes everything registered under the session owner.
func (s *Service) RemoveSessionOwner(sender dbus.Sender, owner string) *dbus.Error {
	log := s.requestLogger("RemoveSessionOwner", sender)
	lt := domain.SessionLifetime(owner)
	return s.reply(log, lt, s.manager.RemoveLifetime(lt, metrics.ReasonRequest))
}

// RemovePersistentOwner removes everything registered under the persistent owner.
func (s *Service) RemovePersistentOwner(sender dbus.Sender, owner string) *dbus.Error {
	log := s.requestLogger("RemovePersistentOwner", sender)
	lt := domain.PersistentLifetime(owner)
	return s.reply(log, lt, s.manager.RemoveLifetime(lt, metrics.ReasonRequest))
}

// RegisterChangeHandler marks the caller as refreshing the desktop itself.
func (s *Service) RegisterChangeHandler(sender dbus.Sender) *dbus.Error {
	log := s.requestLogger("RegisterChangeHandler", sender)
	pid, err := s.callers.CallerPID(sender)
	if err != nil {
		log.Warn("caller pid unavailable", zap.Error(err))
		return dbus.MakeFailedError(err)
	}
	s.manager.RegisterChangeHandler(pid)
	return nil
}

func (s *Service) requestLogger(method string, sender dbus.Sender) *zap.Logger {
	log := s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("method", method),
		zap.String("sender", string(sender)))
	log.Debug("bus call")
	return log
}

func (s *Service) reply(log *zap.Logger, lt domain.Lifetime, err error) *dbus.Error {
	if err != nil {
		log.Warn("bus call failed", zap.Stringer("lifetime", lt), zap.Error(err))
	}
	return toBusError(err)
}

// toBusError maps manager errors onto standard D-Bus error names.
func toBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}

	name := errIO
	switch {
	case errors.Is(err, domain.ErrEntryValidation),
		errors.Is(err, domain.ErrIconValidation),
		errors.Is(err, domain.ErrInvalidName):
		name = errInvalidArgs
	case errors.Is(err, domain.ErrPathCollision):
		name = errFileExists
	}
	return dbus.NewError(name, []interface{}{err.Error()})
}

// emitter is the part of *dbus.Conn used to send signals.
type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// SignalEmitter implements domain.Notifier with D-Bus signals.
type SignalEmitter struct {
	conn   emitter
	logger *zap.Logger
}

// NewSignalEmitter creates a notifier that emits on conn.
func NewSignalEmitter(conn *dbus.Conn, logger *zap.Logger) *SignalEmitter {
	return &SignalEmitter{conn: conn, logger: logger}
}

// EntryChanged emits the EntryChanged signal.
func (e *SignalEmitter) EntryChanged(appID string) {
	e.emit("EntryChanged", appID)
}

// IconChanged emits the IconChanged signal.
func (e *SignalEmitter) IconChanged(name string) {
	e.emit("IconChanged", name)
}

func (e *SignalEmitter) emit(signal, arg string) {
	if err := e.conn.Emit(ObjectPath, Interface+"."+signal, arg); err != nil {
		e.logger.Warn("failed to emit signal",
			zap.String("signal", signal),
			zap.String("arg", arg),
			zap.Error(err))
	}
}

// Serve exports svc and its introspection data on conn and claims BusName.
func Serve(conn *dbus.Conn, svc *Service) error {
	if err := conn.Export(svc, ObjectPath, Interface); err != nil {
		return fmt.Errorf("export service: %w", err)
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", BusName)
	}
	return nil
}

// Ensure SignalEmitter implements domain.Notifier.
var _ domain.Notifier = (*SignalEmitter)(nil)
