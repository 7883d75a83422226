package scene

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/geo"
)

// Default metadata file names inside a scene directory.
const (
	MetadataFile = "metadata.xml"
	TileInfoFile = "tileInfo.json"
)

// geopositionResolution selects the 10 m geoposition, matching the RGB bands.
const geopositionResolution = "10"

// Metadata is the flat scene mapping plus the projection the mapper needs.
type Metadata struct {
	Projection geo.Projection
	Fields     map[string]string
}

// Loader reads Sentinel-2 tile metadata from a scene directory.
type Loader struct {
	MetadataFile string
	TileInfoFile string
}

// NewLoader returns a Loader using the default file names.
func NewLoader() *Loader {
	return &Loader{MetadataFile: MetadataFile, TileInfoFile: TileInfoFile}
}

type tileMetadataXML struct {
	GeneralInfo struct {
		TileID      string `xml:"TILE_ID"`
		DatastripID string `xml:"DATASTRIP_ID"`
		SensingTime string `xml:"SENSING_TIME"`
	} `xml:"General_Info"`
	GeometricInfo struct {
		TileGeocoding struct {
			CSName       string `xml:"HORIZONTAL_CS_NAME"`
			CSCode       string `xml:"HORIZONTAL_CS_CODE"`
			Geopositions []struct {
				Resolution string `xml:"resolution,attr"`
				ULX        string `xml:"ULX"`
				ULY        string `xml:"ULY"`
				XDIM       string `xml:"XDIM"`
				YDIM       string `xml:"YDIM"`
			} `xml:"Geoposition"`
		} `xml:"Tile_Geocoding"`
	} `xml:"Geometric_Info"`
	QualityInfo struct {
		ImageContent struct {
			CloudyPixelPercentage string `xml:"CLOUDY_PIXEL_PERCENTAGE"`
		} `xml:"Image_Content_QI"`
	} `xml:"Quality_Indicators_Info"`
}

type tileInfoJSON struct {
	Path                   string   `json:"path"`
	Timestamp              string   `json:"timestamp"`
	UTMZone                int      `json:"utmZone"`
	LatitudeBand           string   `json:"latitudeBand"`
	GridSquare             string   `json:"gridSquare"`
	ProductName            string   `json:"productName"`
	DataCoveragePercentage *float64 `json:"dataCoveragePercentage"`
	CloudyPixelPercentage  *float64 `json:"cloudyPixelPercentage"`
	TileGeometry           struct {
		CRS struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	} `json:"tileGeometry"`
}

// Load parses the scene's metadata.xml (required) and tileInfo.json (optional).
func (l *Loader) Load(dir string) (Metadata, error) {
	md := Metadata{Fields: make(map[string]string)}

	xmlPath := filepath.Join(dir, l.MetadataFile)
	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return md, fmt.Errorf("%w: failed to read %s: %v", errs.ErrInvalidSceneMetadata, xmlPath, err)
	}

	var tile tileMetadataXML
	if err := xml.Unmarshal(data, &tile); err != nil {
		return md, fmt.Errorf("%w: failed to parse %s: %v", errs.ErrInvalidSceneMetadata, xmlPath, err)
	}

	setField(md.Fields, "#scene_tile_id", tile.GeneralInfo.TileID)
	setField(md.Fields, "#scene_datastrip_id", tile.GeneralInfo.DatastripID)
	setField(md.Fields, "#scene_sensing_time", tile.GeneralInfo.SensingTime)
	setField(md.Fields, "#scene_cs_name", tile.GeometricInfo.TileGeocoding.CSName)
	setField(md.Fields, "#scene_cloudy_pixel_percentage", tile.QualityInfo.ImageContent.CloudyPixelPercentage)

	md.Projection.CRS = strings.TrimSpace(tile.GeometricInfo.TileGeocoding.CSCode)
	if err := applyGeoposition(&md.Projection, tile); err != nil {
		return md, fmt.Errorf("%s: %w", xmlPath, err)
	}

	if err := l.loadTileInfo(dir, &md); err != nil {
		return md, err
	}

	if err := md.Projection.Validate(); err != nil {
		return md, fmt.Errorf("%s: %w", dir, err)
	}
	return md, nil
}

func applyGeoposition(p *geo.Projection, tile tileMetadataXML) error {
	for _, g := range tile.GeometricInfo.TileGeocoding.Geopositions {
		if strings.TrimSpace(g.Resolution) != geopositionResolution {
			continue
		}
		values := make([]float64, 4)
		for i, raw := range []string{g.ULX, g.ULY, g.XDIM, g.YDIM} {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("%w: geoposition value %q", errs.ErrInvalidSceneMetadata, raw)
			}
			values[i] = v
		}
		p.OriginX, p.OriginY, p.PixelWidth, p.PixelHeight = values[0], values[1], values[2], values[3]
		return nil
	}
	return fmt.Errorf("%w: no %s m geoposition", errs.ErrInvalidSceneMetadata, geopositionResolution)
}

func (l *Loader) loadTileInfo(dir string, md *Metadata) error {
	if l.TileInfoFile == "" {
		return nil
	}
	path := filepath.Join(dir, l.TileInfoFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", errs.ErrInvalidSceneMetadata, path, err)
	}

	var info tileInfoJSON
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", errs.ErrInvalidSceneMetadata, path, err)
	}

	setField(md.Fields, "#scene_path", info.Path)
	setField(md.Fields, "#scene_timestamp", info.Timestamp)
	setField(md.Fields, "#scene_latitude_band", info.LatitudeBand)
	setField(md.Fields, "#scene_grid_square", info.GridSquare)
	setField(md.Fields, "#scene_product_name", info.ProductName)
	if info.UTMZone > 0 {
		md.Fields["#scene_utm_zone"] = strconv.Itoa(info.UTMZone)
	}
	if info.DataCoveragePercentage != nil {
		md.Fields["#scene_data_coverage_percentage"] = strconv.FormatFloat(*info.DataCoveragePercentage, 'f', -1, 64)
	}
	if info.CloudyPixelPercentage != nil {
		md.Fields["#scene_cloudy_pixel_percentage"] = strconv.FormatFloat(*info.CloudyPixelPercentage, 'f', -1, 64)
	}

	if md.Projection.CRS == "" {
		md.Projection.CRS = info.TileGeometry.CRS.Properties.Name
	}
	return nil
}

func setField(fields map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fields[key] = v
	}
}
