package escher

const (
	// ClusterSize is the number of shape ids one cluster covers.
	ClusterSize = 1024

	dggHeaderSize  = 16
	dggClusterSize = 8
)

// DggRecord is the workbook-wide shape id allocator.
//
// Payload: spidMax(4) cidcl(4) cspSaved(4) cdgSaved(4), then cidcl-1
// cluster descriptors of dgid(4) cspidCur(4). Cluster i owns the ids
// [(i+1)*1024, (i+2)*1024).
type DggRecord struct {
	DataRecord
}

// NewDgg builds an allocator without clusters.
func NewDgg() *DggRecord {
	r := &DggRecord{DataRecord: *NewDataRecord(TagDgg, 0, 0, make([]byte, dggHeaderSize))}
	r.putU32(4, 1)
	return r
}

func (r *DggRecord) afterLoad() error {
	if err := r.requireLen(dggHeaderSize); err != nil {
		return err
	}
	if (len(r.data)-dggHeaderSize)%dggClusterSize != 0 {
		return newInvalidDataError("Dgg cluster table has %d bytes", len(r.data)-dggHeaderSize)
	}
	return nil
}

// Attach registers the allocator as the workbook singleton.
func (r *DggRecord) Attach(g *GroupCache, d *DrawingCache) error {
	if err := r.recordBase.Attach(g, d); err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	return g.setDgg(r)
}

// Destroy unregisters the allocator.
func (r *DggRecord) Destroy() {
	if r.group != nil {
		r.group.forget(r)
	}
	r.recordBase.Destroy()
}

// Copy clones the allocator into the destination workbook.
func (r *DggRecord) Copy(ctx *CopyContext) (Record, error) {
	c := &DggRecord{DataRecord: r.clone(ctx)}
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return c, nil
}

// MaxShapeID returns the highest shape id issued.
func (r *DggRecord) MaxShapeID() uint32 { return r.u32(0) }

// ClusterCount returns the number of cluster slots.
func (r *DggRecord) ClusterCount() int { return (len(r.data) - dggHeaderSize) / dggClusterSize }

// ShapesSaved returns the number of shape ids in use.
func (r *DggRecord) ShapesSaved() uint32 { return r.u32(8) }

// DrawingsSaved returns the number of active drawings.
func (r *DggRecord) DrawingsSaved() uint32 { return r.u32(12) }

// Cluster returns the owning drawing and used count of slot i.
func (r *DggRecord) Cluster(i int) (dgid, used uint32) {
	off := dggHeaderSize + i*dggClusterSize
	return r.u32(off), r.u32(off + 4)
}

func (r *DggRecord) setCluster(i int, dgid, used uint32) {
	off := dggHeaderSize + i*dggClusterSize
	r.putU32(off, dgid)
	r.putU32(off+4, used)
}

func (r *DggRecord) growCluster() int {
	i := r.ClusterCount()
	buf := make([]byte, len(r.data)+dggClusterSize)
	copy(buf, r.data)
	r.setData(buf)
	r.putU32(4, uint32(r.ClusterCount()+1))
	return i
}

func (r *DggRecord) noteShape(id uint32) {
	r.putU32(8, r.ShapesSaved()+1)
	if id > r.MaxShapeID() {
		r.putU32(0, id)
	}
}

func firstShapeID(cluster int) uint32 {
	return uint32(cluster+1) * ClusterSize
}

// IsEmpty reports whether no drawing holds a cluster.
func (r *DggRecord) IsEmpty() bool {
	return r.DrawingsSaved() == 0
}

// AllocateClusterForNewDrawing assigns the next drawing id a cluster and
// issues its first shape id.
func (r *DggRecord) AllocateClusterForNewDrawing() (dgid, firstID uint32) {
	slot := -1
	for i := range r.ClusterCount() {
		id, _ := r.Cluster(i)
		dgid = max(dgid, id)
		if id == 0 && slot < 0 {
			slot = i
		}
	}
	dgid++
	if slot < 0 {
		slot = r.growCluster()
	}

	r.setCluster(slot, dgid, 1)
	r.putU32(12, r.DrawingsSaved()+1)
	firstID = firstShapeID(slot)
	r.noteShape(firstID)
	return dgid, firstID
}

// AllocateClusterForExistingDrawing gives drawing dgid another cluster with
// initialCount ids marked used and returns the cluster's first id.
//
// Free slots are searched from the end backward. The search stops at the
// first slot owned by a drawing with a smaller id: slots before it are never
// reused for dgid.
func (r *DggRecord) AllocateClusterForExistingDrawing(dgid, initialCount uint32) uint32 {
	slot := -1
	for i := r.ClusterCount() - 1; i >= 0; i-- {
		id, _ := r.Cluster(i)
		if id == 0 {
			slot = i
			continue
		}
		if id < dgid {
			break
		}
	}
	if slot < 0 {
		slot = r.growCluster()
	}
	r.setCluster(slot, dgid, initialCount)
	return firstShapeID(slot)
}

// IssueNextShapeID returns the id following lastID for drawing dgid. A new
// cluster is allocated when the cluster of lastID is full or owned by another
// drawing.
func (r *DggRecord) IssueNextShapeID(dgid, lastID uint32) (uint32, error) {
	if dgid == 0 {
		return 0, newInternalError("issue shape id for drawing 0")
	}

	var id uint32
	next := lastID + 1
	if ci := int(lastID/ClusterSize) - 1; lastID != 0 && next%ClusterSize != 0 && ci >= 0 && ci < r.ClusterCount() {
		owner, used := r.Cluster(ci)
		if owner == dgid && used < ClusterSize {
			r.setCluster(ci, owner, used+1)
			id = next
		}
	}
	if id == 0 {
		id = r.AllocateClusterForExistingDrawing(dgid, 1)
	}
	r.noteShape(id)
	return id, nil
}

// ReleaseClusterForDrawing frees every cluster owned by dgid. The table does
// not shrink.
func (r *DggRecord) ReleaseClusterForDrawing(dgid uint32) {
	freed := false
	for i := range r.ClusterCount() {
		if id, _ := r.Cluster(i); id == dgid {
			r.setCluster(i, 0, 0)
			freed = true
		}
	}
	if !freed {
		return
	}
	if n := r.DrawingsSaved(); n > 0 {
		r.putU32(12, n-1)
	}
}
