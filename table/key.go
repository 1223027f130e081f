package table

import (
	"cmp"
	"fmt"

	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/section"
)

// Key identifies a sub-table. Which fields take part depends on the table
// family; unused fields stay zero.
type Key struct {
	TableID           format.TableID
	TableIDExt        uint16
	TransportStreamID uint16
	OriginalNetworkID uint16
}

// Compare orders keys by table id, extension, transport stream id and
// original network id.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.TableID, o.TableID); c != 0 {
		return c
	}
	if c := cmp.Compare(k.TableIDExt, o.TableIDExt); c != 0 {
		return c
	}
	if c := cmp.Compare(k.TransportStreamID, o.TransportStreamID); c != 0 {
		return c
	}

	return cmp.Compare(k.OriginalNetworkID, o.OriginalNetworkID)
}

func (k Key) String() string {
	return fmt.Sprintf("%02x:%04x:%04x:%04x", uint8(k.TableID), k.TableIDExt, k.TransportStreamID, k.OriginalNetworkID)
}

// KeyFunc derives the sub-table key of a section.
type KeyFunc func(s *section.Section) Key

// BasicKey keys by table id and extension; used for PAT, CAT, PMT, NIT and BAT.
func BasicKey(s *section.Section) Key {
	return Key{TableID: s.TableID, TableIDExt: s.TableIDExt}
}

// SDTKey adds original_network_id to BasicKey; table_id_extension is the
// transport_stream_id.
func SDTKey(s *section.Section) Key {
	return Key{
		TableID:           s.TableID,
		TableIDExt:        s.TableIDExt,
		TransportStreamID: s.TableIDExt,
		OriginalNetworkID: s.OriginalNetworkID,
	}
}

// EITKey keys by table id, service id, transport stream id and original
// network id.
func EITKey(s *section.Section) Key {
	return Key{
		TableID:           s.TableID,
		TableIDExt:        s.TableIDExt,
		TransportStreamID: s.TransportStreamID,
		OriginalNetworkID: s.OriginalNetworkID,
	}
}

// ServiceKey identifies one service of the EIT family.
type ServiceKey struct {
	ServiceID         uint16
	TransportStreamID uint16
	OriginalNetworkID uint16
}

// ServiceKeyOf returns the service key of an EIT section.
func ServiceKeyOf(s *section.Section) ServiceKey {
	return ServiceKey{
		ServiceID:         s.TableIDExt,
		TransportStreamID: s.TransportStreamID,
		OriginalNetworkID: s.OriginalNetworkID,
	}
}

// SubTableKey returns the key of the sub-table carrying tableID for the service.
func (k ServiceKey) SubTableKey(tableID format.TableID) Key {
	return Key{
		TableID:           tableID,
		TableIDExt:        k.ServiceID,
		TransportStreamID: k.TransportStreamID,
		OriginalNetworkID: k.OriginalNetworkID,
	}
}

// Compare orders service keys by service id, transport stream id and
// original network id, matching the field order of Key.
func (k ServiceKey) Compare(o ServiceKey) int {
	if c := cmp.Compare(k.ServiceID, o.ServiceID); c != 0 {
		return c
	}
	if c := cmp.Compare(k.TransportStreamID, o.TransportStreamID); c != 0 {
		return c
	}

	return cmp.Compare(k.OriginalNetworkID, o.OriginalNetworkID)
}

func (k ServiceKey) String() string {
	return fmt.Sprintf("%04x:%04x:%04x", k.ServiceID, k.TransportStreamID, k.OriginalNetworkID)
}
