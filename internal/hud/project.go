package hud

import (
	"github.com/go-gl/mathgl/mgl32"
)

// The panel is a unit quad facing +Z; icons float slightly in front of it.
const (
	vLift      = 0.08
	panelFace  = 0.5
	faceOffset = 0.02
)

// PanelLocal converts a panel UV into the panel's local 3D coordinates.
func PanelLocal(uv mgl32.Vec2) mgl32.Vec3 {
	u := mgl32.Clamp(uv.X(), 0, 1)
	v := mgl32.Clamp(uv.Y()+vLift, 0, 1)
	return mgl32.Vec3{-0.5 + u, -0.5 + v, panelFace + faceOffset}
}

// ProjectToNDC projects a world point with the given view and projection.
// Points on the camera plane collapse to the origin.
func ProjectToNDC(world mgl32.Vec3, view, proj mgl32.Mat4) mgl32.Vec2 {
	clip := proj.Mul4(view).Mul4x1(world.Vec4(1))
	if mgl32.Abs(clip.W()) < 1e-6 {
		return mgl32.Vec2{}
	}
	return mgl32.Vec2{clip.X() / clip.W(), clip.Y() / clip.W()}
}

// Projector maps panel UVs to screen space for a given frame's camera.
type Projector struct {
	PanelWorld mgl32.Mat4
	View       mgl32.Mat4
	Proj       mgl32.Mat4
}

func (p Projector) Point(uv mgl32.Vec2) mgl32.Vec2 {
	world := p.PanelWorld.Mul4x1(PanelLocal(uv).Vec4(1)).Vec3()
	return ProjectToNDC(world, p.View, p.Proj)
}

// Quad returns the corners of a UV rectangle as top-left, top-right,
// bottom-right, bottom-left.
func (p Projector) Quad(u0, v0, u1, v1 float32) [4]mgl32.Vec2 {
	return [4]mgl32.Vec2{
		p.Point(mgl32.Vec2{u0, v1}),
		p.Point(mgl32.Vec2{u1, v1}),
		p.Point(mgl32.Vec2{u1, v0}),
		p.Point(mgl32.Vec2{u0, v0}),
	}
}

// Path projects every UV of a polyline, e.g. View.RouteUV.
func (p Projector) Path(uvs []mgl32.Vec2) []mgl32.Vec2 {
	out := make([]mgl32.Vec2, len(uvs))
	for i, uv := range uvs {
		out[i] = p.Point(uv)
	}
	return out
}
