// Package alloc hands out raw off-heap blocks whose payload is preceded by
// a fixed-size header, the way a malloc-style allocator would.
//
// Plain blocks are anonymous mappings. Backed blocks are engine objects
// created with a HeaderSize prefix, so the header sits in the committed
// prefix page directly before the object's data. Deallocate recognizes
// both kinds from the header and unmaps or destroys accordingly.
package alloc
