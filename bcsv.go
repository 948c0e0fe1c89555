// Package bcsv implements a binary columnar row-oriented file format for
// persisting tabular data with strong typing, optional LZ4 compression,
// crash-recoverable packet framing, and random access.
//
// # Core Features
//
//   - Strongly-typed columns (twelve scalar/string types, see package layout)
//   - Two row wire formats: Flat001 (full row every call) and ZoH001
//     (Zero-Order-Hold: only changed columns), see package rowcodec
//   - Five file framings spanning stream/packet structure and LZ4
//     compression strategy (none, per-row streaming, whole-packet batch),
//     see package filecodec
//   - Crash recovery via packet checksums and footer rebuild
//   - Random access via ReaderDirectAccess.ReadAt, backed by a packet index
//
// # Basic Usage
//
// Writing a file:
//
//	l, _ := layout.NewLayout([]layout.ColumnDefinition{
//	    {Name: "id", Type: layout.TypeInt32},
//	    {Name: "name", Type: layout.TypeString},
//	})
//	w, _ := bcsv.NewWriter("data.bcsv", l, bcsv.WithCompressionLevel(3))
//	defer w.Close()
//
//	row := w.Row()
//	row.SetInt32(0, 42)
//	row.SetString(1, "Alice")
//	w.WriteRow()
//
// Reading a file sequentially:
//
//	r, _ := bcsv.NewReader("data.bcsv")
//	defer r.Close()
//
//	for {
//	    ok, err := r.ReadNext()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if !ok {
//	        break
//	    }
//	    id, _ := r.Row().Int32(0)
//	    name, _ := r.Row().String(1)
//	    fmt.Println(id, name)
//	}
//
// Random access:
//
//	ra, _ := bcsv.NewReaderDirectAccess("data.bcsv")
//	defer ra.Close()
//	ra.ReadAt(500)
//	id, _ := ra.Row().Int32(0)
package bcsv
