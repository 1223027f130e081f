// Package table reassembles DVB/MPEG-2 SI sub-tables from their sections and
// reports, for every section fed to it, what changed.
//
// The containers form a hierarchy:
//
//	SubTable      one table instance, uniform or EIT-segmented layout
//	Table         sub-tables of one table id, keyed by a KeyFunc
//	ServiceTable  EIT sub-tables of one service (present/following + 16 schedule slots)
//	Schedule      service tables of every service seen
//
// All containers share the same two-step protocol. Test classifies a section
// without side effects; Save stores it given the Test outcome, or NotTested to
// let Save run Test itself:
//
//	res := tbl.Save(s, tbl.Test(s))
//	if res.Has(table.CompleteTable) {
//		// every sub-table holds all of its sections at one version
//	}
//
// The containers are not safe for concurrent use.
package table
