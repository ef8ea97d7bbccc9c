package app

import (
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/modules/csvexport"
	"github.com/vk/annogrid/modules/freqlist"
	"github.com/vk/annogrid/modules/hunpos"
	"github.com/vk/annogrid/modules/segmenter"
	"github.com/vk/annogrid/modules/tagger"
	"github.com/vk/annogrid/modules/textimport"
	"github.com/vk/annogrid/modules/xmlexport"
)

// coreModules is the definitive list of analysis modules compiled into the
// pipeline binary.
var coreModules = []registry.Module{
	&textimport.Module{},
	&segmenter.Module{},
	&tagger.Module{},
	&hunpos.Module{},
	&freqlist.Module{},
	&xmlexport.Module{},
	&csvexport.Module{},
}
