package bus

// D-Bus bus and interface names used when talking to the BlueZ daemon.
const (
	BluezBusName  = "org.bluez"
	BluezRootPath = "/"

	AdapterIface            = "org.bluez.Adapter1"
	DeviceIface             = "org.bluez.Device1"
	GattServiceIface        = "org.bluez.GattService1"
	GattCharacteristicIface = "org.bluez.GattCharacteristic1"
	GattDescriptorIface     = "org.bluez.GattDescriptor1"

	ObjectManagerIface = "org.freedesktop.DBus.ObjectManager"
	PropertiesIface    = "org.freedesktop.DBus.Properties"

	GetManagedObjectsMethod = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	SetPropertyMethod       = "org.freedesktop.DBus.Properties.Set"

	InterfacesAddedSignal   = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	InterfacesRemovedSignal = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"
	PropertiesChangedSignal = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

// Adapter1 methods.
const (
	StartDiscoveryMethod     = "StartDiscovery"
	StopDiscoveryMethod      = "StopDiscovery"
	SetDiscoveryFilterMethod = "SetDiscoveryFilter"
	RemoveDeviceMethod       = "RemoveDevice"
)

// Device1 methods.
const (
	ConnectMethod    = "Connect"
	DisconnectMethod = "Disconnect"
)

// GattCharacteristic1 and GattDescriptor1 methods.
const (
	ReadValueMethod   = "ReadValue"
	WriteValueMethod  = "WriteValue"
	StartNotifyMethod = "StartNotify"
	StopNotifyMethod  = "StopNotify"
)

// Property names consumed by the topology cache.
const (
	PropAddress          = "Address"
	PropName             = "Name"
	PropAlias            = "Alias"
	PropPowered          = "Powered"
	PropDiscovering      = "Discovering"
	PropRSSI             = "RSSI"
	PropConnected        = "Connected"
	PropServicesResolved = "ServicesResolved"
	PropUUIDs            = "UUIDs"
	PropAdapter          = "Adapter"
	PropUUID             = "UUID"
	PropPrimary          = "Primary"
	PropDevice           = "Device"
	PropService          = "Service"
	PropCharacteristic   = "Characteristic"
	PropFlags            = "Flags"
	PropValue            = "Value"
	PropNotifying        = "Notifying"
)

// BlueZ daemon error names that map onto the library error taxonomy.
// Anything else is passed through verbatim.
const (
	ErrNameNotConnected = "org.bluez.Error.NotConnected"
	ErrNameNotSupported = "org.bluez.Error.NotSupported"
	ErrNameNotReady     = "org.bluez.Error.NotReady"
	ErrNameInProgress   = "org.bluez.Error.InProgress"
	ErrNameFailed       = "org.bluez.Error.Failed"
)
