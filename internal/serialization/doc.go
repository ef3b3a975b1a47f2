// Package serialization implements the .born container used for model
// weights, optimizer state and checkpoints.
//
//	Format Structure (v2):
//	  0x00 [4 bytes: Magic "BORN"]
//	  0x04 [4 bytes: Version = 2 (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: reserved]
//	  0x10 [8 bytes: Header Size (uint64 LE)]
//	  0x18 [8 bytes: Data Size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the data section]
//	  0x40 [Header: JSON metadata]
//	       [padding to a 64-byte boundary]
//	       [Tensor data: little-endian float32, in header order]
//
// Tensors are written in layer order (see nn.SortedKeys) so that the same state always
// produces the same bytes apart from the creation time.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := serialization.Encode(&buf, model.StateDict(), serialization.Header{ModelType: "mlp"}); err != nil {
//	    return err
//	}
//
//	stateDict, header, err := serialization.Decode(&buf, serialization.ReaderOptions{})
package serialization
