// Package nodes holds the built-in node behaviors.
package nodes

import (
	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Node type names as they appear in saved graphs.
const (
	KindSwitch      = "Switch"
	KindIntSwitch   = "IntSwitch"
	KindFloatSwitch = "FloatSwitch"
	KindStringInput = "StringInput"
	KindClock       = "Clock"

	KindDisplay = "Display"
	KindSounder = "Sounder"

	KindAND  = "AND"
	KindOR   = "OR"
	KindXOR  = "XOR"
	KindNAND = "NAND"
	KindNOR  = "NOR"
	KindXNOR = "XNOR"
	KindNOT  = "NOT"

	KindAdd      = "Add"
	KindSubtract = "Subtract"
	KindMultiply = "Multiply"
	KindDivide   = "Divide"
	KindModulo   = "Modulo"

	KindNumericComparator = "NumericComparator"
	KindCounter           = "Counter"
	KindEdgeDetector      = "EdgeDetector"
	KindTypeConverter     = "TypeConverter"
	KindSplitter          = "Splitter"

	KindCondition = "Condition"
	KindFormula   = "Formula"
	KindClassed   = "Classed"
)

// Register adds every built-in kind to reg. Panics on duplicates, like any
// other registration. The scripted node lives in its own package.
func Register(reg *circuit.Registry) {
	reg.Register(KindSwitch, func() circuit.Behavior { return newValueSource(transition.Bool) })
	reg.Register(KindIntSwitch, func() circuit.Behavior { return newValueSource(transition.Int) })
	reg.Register(KindFloatSwitch, func() circuit.Behavior { return newValueSource(transition.Float) })
	reg.Register(KindStringInput, func() circuit.Behavior { return newValueSource(transition.String) })
	reg.Register(KindClock, func() circuit.Behavior { return &clock{Period: defaultClockPeriod} })

	reg.Register(KindDisplay, func() circuit.Behavior { return &display{Type: transition.Bool} })
	reg.Register(KindSounder, func() circuit.Behavior { return &sounder{} })

	for kind, op := range gateOps {
		reg.Register(kind, func() circuit.Behavior { return &gate{op: op, Inputs: minGateInputs} })
	}
	reg.Register(KindNOT, func() circuit.Behavior { return &not{} })

	for kind, op := range arithmeticOps {
		reg.Register(kind, func() circuit.Behavior {
			return &arithmetic{op: op, Type: transition.Int, Inputs: minArithmeticInputs}
		})
	}

	reg.Register(KindNumericComparator, func() circuit.Behavior {
		return &comparator{Op: transition.OpLess, Type: transition.Int}
	})
	reg.Register(KindCounter, func() circuit.Behavior { return &counter{} })
	reg.Register(KindEdgeDetector, func() circuit.Behavior { return &edgeDetector{} })
	reg.Register(KindTypeConverter, func() circuit.Behavior {
		return &typeConverter{From: transition.Int, To: transition.String}
	})
	reg.Register(KindSplitter, func() circuit.Behavior { return &splitter{Outputs: minSplitterOutputs, Type: transition.Bool} })

	reg.Register(KindCondition, func() circuit.Behavior { return newCondition() })
	reg.Register(KindFormula, func() circuit.Behavior { return newFormula() })
	reg.Register(KindClassed, func() circuit.Behavior { return newClassed(reg) })
}
