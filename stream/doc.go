// Package stream provides the seekable byte buffer that schema trees are
// unpacked from and packed into.
//
// A Stream is either an in-memory buffer (New, NewBuffer) or a read-only
// file mapping (Open). Mapped streams are copied to the heap on their
// first write, so a tree unpacked from a file can be repacked in place.
//
//	st, err := stream.Open("image.png")
//	if err != nil {
//		return err
//	}
//	defer st.Close()
//
// Mark and Reset form a stack of saved positions for look-ahead parsing.
// Streams are not safe for concurrent use.
package stream
