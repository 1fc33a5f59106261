package visualizer

import (
	"bytes"
	"encoding/json"
	"html/template"

	"github.com/pkg/errors"

	"github.com/athapong/papergraph/pkg/graph"
)

// The HTML template for the D3.js force-directed rendering of a collection
// graph.
const d3Template = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Knowledge Graph</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <style>
        body {
            margin: 0;
            font-family: Arial, sans-serif;
            background-color: #141519;
            color: white;
        }
        #graph {
            width: 100%;
            height: 100vh;
        }
        .node {
            stroke: #fff;
            stroke-width: 1.5px;
        }
        .link {
            stroke: #999;
            stroke-opacity: 0.6;
        }
        .node-label, .link-label {
            font-size: 10px;
            fill: white;
            pointer-events: none;
        }
        .controls {
            position: absolute;
            top: 10px;
            left: 10px;
            background-color: rgba(0,0,0,0.5);
            padding: 10px;
            border-radius: 5px;
        }
    </style>
</head>
<body>
    <div id="graph"></div>
    <div class="controls">
        <h3>Knowledge Graph</h3>
        <p>Entities: {{.NodeCount}}, Triples: {{.EdgeCount}}</p>
    </div>

    <script>
        const graphData = {{.GraphData}};

        const simulation = d3.forceSimulation(graphData.nodes)
            .force("link", d3.forceLink(graphData.edges).id(d => d.id).distance(120))
            .force("charge", d3.forceManyBody().strength(-300))
            .force("center", d3.forceCenter(window.innerWidth / 2, window.innerHeight / 2));

        const svg = d3.select("#graph")
            .append("svg")
            .attr("width", "100%")
            .attr("height", "100%")
            .call(d3.zoom().on("zoom", (event) => {
                g.attr("transform", event.transform);
            }));

        const g = svg.append("g");

        const nodeTypes = [...new Set(graphData.nodes.map(node => node.type))];
        const colorScale = d3.scaleOrdinal(d3.schemeCategory10).domain(nodeTypes);

        const link = g.append("g")
            .selectAll("line")
            .data(graphData.edges)
            .enter()
            .append("line")
            .attr("class", "link")
            .attr("stroke-width", d => Math.sqrt(d.weight) * 2);

        const node = g.append("g")
            .selectAll("circle")
            .data(graphData.nodes)
            .enter()
            .append("circle")
            .attr("class", "node")
            .attr("r", 8)
            .attr("fill", d => colorScale(d.type))
            .call(d3.drag()
                .on("start", dragstarted)
                .on("drag", dragged)
                .on("end", dragended));

        const label = g.append("g")
            .selectAll("text")
            .data(graphData.nodes)
            .enter()
            .append("text")
            .attr("class", "node-label")
            .attr("dx", 12)
            .attr("dy", ".35em")
            .text(d => d.label);

        const linkLabel = g.append("g")
            .selectAll("text")
            .data(graphData.edges)
            .enter()
            .append("text")
            .attr("class", "link-label")
            .text(d => d.type);

        node.append("title")
            .text(d => d.aliases.join(", "));

        simulation.on("tick", () => {
            link
                .attr("x1", d => d.source.x)
                .attr("y1", d => d.source.y)
                .attr("x2", d => d.target.x)
                .attr("y2", d => d.target.y);

            node
                .attr("cx", d => d.x)
                .attr("cy", d => d.y);

            label
                .attr("x", d => d.x)
                .attr("y", d => d.y);

            linkLabel
                .attr("x", d => (d.source.x + d.target.x) / 2)
                .attr("y", d => (d.source.y + d.target.y) / 2);
        });

        function dragstarted(event, d) {
            if (!event.active) simulation.alphaTarget(0.3).restart();
            d.fx = d.x;
            d.fy = d.y;
        }

        function dragged(event, d) {
            d.fx = event.x;
            d.fy = event.y;
        }

        function dragended(event, d) {
            if (!event.active) simulation.alphaTarget(0);
            d.fx = null;
            d.fy = null;
        }
    </script>
</body>
</html>
`

type vizNode struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Aliases []string `json:"aliases"`
}

type vizEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

type vizData struct {
	Nodes []vizNode `json:"nodes"`
	Edges []vizEdge `json:"edges"`
}

// D3Visualizer renders a collection graph as a self-contained HTML page.
type D3Visualizer struct{}

// NewD3Visualizer creates a D3.js visualizer.
func NewD3Visualizer() *D3Visualizer {
	return &D3Visualizer{}
}

// Render produces the HTML page for the given graph. Edge weight is the
// number of provenance entries backing the triple.
func (v *D3Visualizer) Render(g *graph.Graph) ([]byte, error) {
	data := vizData{
		Nodes: make([]vizNode, 0, len(g.Entities)),
		Edges: make([]vizEdge, 0, len(g.Triples)),
	}

	for _, e := range g.Entities {
		label := e.ID
		if len(e.Aliases) > 0 {
			label = e.Aliases[0]
		}
		nodeType := e.Type
		if nodeType == "" {
			nodeType = "concept"
		}
		data.Nodes = append(data.Nodes, vizNode{
			ID:      e.ID,
			Label:   label,
			Type:    nodeType,
			Aliases: e.Aliases,
		})
	}

	for _, t := range g.Triples {
		data.Edges = append(data.Edges, vizEdge{
			Source: t.Subject,
			Target: t.Object,
			Type:   t.Relation,
			Weight: float64(len(t.Provenance)),
		})
	}

	graphJSON, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encoding graph for visualization")
	}

	tmpl, err := template.New("d3").Parse(d3Template)
	if err != nil {
		return nil, errors.Wrap(err, "parsing visualization template")
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		GraphData template.JS
		NodeCount int
		EdgeCount int
	}{
		GraphData: template.JS(graphJSON),
		NodeCount: len(data.Nodes),
		EdgeCount: len(data.Edges),
	})
	if err != nil {
		return nil, errors.Wrap(err, "rendering visualization")
	}

	return buf.Bytes(), nil
}
