package app

import (
	"github.com/specialistvlad/gridbench/internal/registry"
	"github.com/specialistvlad/gridbench/modules/binning"
	"github.com/specialistvlad/gridbench/modules/decisiontree"
	"github.com/specialistvlad/gridbench/modules/naivebayes"
	"github.com/specialistvlad/gridbench/modules/zeror"
)

// coreModules is the definitive list of all models and discretizers that are
// compiled into the gridbench binary.
var coreModules = []registry.Module{
	&binning.Module{},
	&zeror.Module{},
	&naivebayes.Module{},
	&decisiontree.Module{},
}
