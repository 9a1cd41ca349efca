package layout

import "testing"

func TestRecordSizes(t *testing.T) {
	specs := []struct {
		name string
		size int
		exp  int
	}{
		{"PathState", SizeOfPathState, 64},
		{"Hit", SizeOfHit, 32},
		{"Connection", SizeOfConnection, 64},
		{"Counters", SizeOfCounters, 32},
		{"InstanceDesc", SizeOfInstanceDesc, 80},
		{"Triangle", SizeOfTriangle, 96},
		{"BvhNode", SizeOfBvhNode, 32},
		{"Material", SizeOfMaterial, 256},
		{"AreaLight", SizeOfAreaLight, 80},
		{"PointLight", SizeOfPointLight, 32},
		{"SpotLight", SizeOfSpotLight, 48},
		{"DirectionalLight", SizeOfDirectionalLight, 32},
		{"Exception", SizeOfException, 16},
		{"Params", SizeOfParams, 192},
	}

	for _, spec := range specs {
		if spec.size != spec.exp {
			t.Errorf("expected sizeof(%s) to be %d; got %d", spec.name, spec.exp, spec.size)
		}
		if spec.size%16 != 0 {
			t.Errorf("expected sizeof(%s) to be a multiple of 16; got %d", spec.name, spec.size)
		}
	}
}

func TestHitMiss(t *testing.T) {
	if !(&Hit{Inst: -1}).Miss() {
		t.Fatal("expected negative instance id to be a miss")
	}
	if (&Hit{Inst: 0}).Miss() {
		t.Fatal("expected instance 0 to be a hit")
	}
}
